package types

import (
	"time"
)

// Format is the clipboard format category of a snapshot. The string values
// are the type tags stored in the on-volume manifest.
type Format string

const (
	FormatText        Format = "Text"
	FormatHTML        Format = "HTML Format"
	FormatRTF         Format = "Rich Text Format"
	FormatFileList    Format = "FileDrop"
	FormatUnsupported Format = "Unknown"
)

// Formats lists every known format in classification priority order,
// followed by the unsupported marker.
var Formats = []Format{FormatHTML, FormatRTF, FormatText, FormatFileList, FormatUnsupported}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Short returns a compact lower-case name used in logs and tables.
func (f Format) Short() string {
	switch f {
	case FormatText:
		return "text"
	case FormatHTML:
		return "html"
	case FormatRTF:
		return "rtf"
	case FormatFileList:
		return "files"
	case FormatUnsupported:
		return "unsupported"
	default:
		return "unknown(" + string(f) + ")"
	}
}

// ClipboardContent is the classified content of one clipboard change.
// Text carries the raw text for Text, HTML and RTF; Files carries the
// absolute source paths for FileList, in clipboard order.
type ClipboardContent struct {
	Format  Format
	Text    string
	Files   []string
	Created time.Time
}

// IsEmpty reports whether the content carries nothing worth persisting.
func (c *ClipboardContent) IsEmpty() bool {
	if c == nil {
		return true
	}
	switch c.Format {
	case FormatFileList:
		return len(c.Files) == 0
	case FormatUnsupported:
		return false
	default:
		return c.Text == ""
	}
}

// Equal compares two contents by format and data.
func (c1 *ClipboardContent) Equal(c2 *ClipboardContent) bool {
	if c1 == nil || c2 == nil {
		return c1 == c2
	}
	if c1.Format != c2.Format || c1.Text != c2.Text || len(c1.Files) != len(c2.Files) {
		return false
	}
	for i := range c1.Files {
		if c1.Files[i] != c2.Files[i] {
			return false
		}
	}
	return true
}
