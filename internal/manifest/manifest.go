// Package manifest encodes the small record describing the clipboard
// snapshot stored at the root of the removable volume.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/berrythewa/clipdrive/internal/types"
)

// Fixed file names at the volume root.
const (
	FileName     = "clipboard_data.json"
	HTMLFileName = "clipboard_data.html"
	RTFFileName  = "clipboard_data.rtf"

	// Separator delimits relative names in a FileList payload.
	Separator = ";"

	// UnsupportedPayload is stored for clipboard content no format matched.
	UnsupportedPayload = "Unsupported clipboard data format"
)

// ErrEmpty is wrapped by ParseError when the input holds no data at all.
var ErrEmpty = errors.New("manifest is empty")

// ParseError reports an undecodable manifest.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid manifest: %s: %v", e.Reason, e.Err)
	}
	return "invalid manifest: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Manifest describes the current snapshot. Payload interpretation depends
// on Format: inline text, an auxiliary file name, or a delimited list of
// relative names.
type Manifest struct {
	Format  types.Format
	Payload string
}

// wire mirrors the JSON layout already present on existing volumes.
type wire struct {
	Type *string `json:"Type"`
	Data *string `json:"Data"`
}

// Text returns a PlainText manifest.
func Text(text string) Manifest {
	return Manifest{Format: types.FormatText, Payload: text}
}

// HTML returns a manifest referencing the HTML auxiliary file.
func HTML() Manifest {
	return Manifest{Format: types.FormatHTML, Payload: HTMLFileName}
}

// RTF returns a manifest referencing the RTF auxiliary file.
func RTF() Manifest {
	return Manifest{Format: types.FormatRTF, Payload: RTFFileName}
}

// FileList returns a manifest for the given slash-separated relative names.
func FileList(names []string) Manifest {
	return Manifest{Format: types.FormatFileList, Payload: strings.Join(names, Separator)}
}

// Unsupported returns the marker manifest for content no format matched.
func Unsupported() Manifest {
	return Manifest{Format: types.FormatUnsupported, Payload: UnsupportedPayload}
}

// Names splits a FileList payload into its relative names. Empty segments
// are dropped; names are otherwise kept byte for byte, surrounding spaces
// included. It returns nil for any other format.
func (m Manifest) Names() []string {
	if m.Format != types.FormatFileList || m.Payload == "" {
		return nil
	}
	parts := strings.Split(m.Payload, Separator)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

// AuxFile returns the auxiliary file name for Html and Rtf manifests.
func (m Manifest) AuxFile() (string, bool) {
	switch m.Format {
	case types.FormatHTML, types.FormatRTF:
		if m.Payload == "" {
			return "", false
		}
		return m.Payload, true
	default:
		return "", false
	}
}

// Encode serializes m.
func Encode(m Manifest) ([]byte, error) {
	if !m.Format.Valid() {
		return nil, fmt.Errorf("encode manifest: unknown format %q", m.Format)
	}
	tag := string(m.Format)
	payload := m.Payload
	return json.Marshal(wire{Type: &tag, Data: &payload})
}

// Decode parses data into a Manifest. Empty, truncated and structurally
// invalid input yields a *ParseError.
func Decode(data []byte) (Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	// Files written by Windows tools may carry a UTF-8 BOM.
	trimmed = bytes.TrimPrefix(trimmed, []byte("\xef\xbb\xbf"))
	if len(trimmed) == 0 {
		return Manifest{}, &ParseError{Reason: "no data", Err: ErrEmpty}
	}
	if trimmed[0] != '{' {
		return Manifest{}, &ParseError{Reason: "not a JSON object"}
	}

	var w wire
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Manifest{}, &ParseError{Reason: "malformed JSON", Err: err}
	}
	if w.Type == nil {
		return Manifest{}, &ParseError{Reason: "missing Type"}
	}
	if w.Data == nil {
		return Manifest{}, &ParseError{Reason: "missing Data"}
	}

	format := types.Format(*w.Type)
	if !format.Valid() {
		return Manifest{}, &ParseError{Reason: fmt.Sprintf("unknown Type %q", *w.Type)}
	}

	m := Manifest{Format: format, Payload: *w.Data}
	if aux, ok := m.AuxFile(); ok && !IsPlainName(aux) {
		return Manifest{}, &ParseError{Reason: fmt.Sprintf("auxiliary file %q is not a plain file name", aux)}
	}
	return m, nil
}

// IsPlainName reports whether name is a single path element that stays
// at the volume root.
func IsPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// IsSafeRelative reports whether a slash-separated relative name resolves
// inside the volume root.
func IsSafeRelative(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return false
	}
	if filepath.IsAbs(filepath.FromSlash(name)) || filepath.VolumeName(filepath.FromSlash(name)) != "" {
		return false
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == "" || elem == "." || elem == ".." {
			return false
		}
	}
	return true
}

// IsReserved reports whether a relative name collides with one of the
// fixed snapshot files.
func IsReserved(name string) bool {
	switch strings.ToLower(name) {
	case FileName, HTMLFileName, RTFFileName, FileName + ".tmp":
		return true
	}
	return false
}
