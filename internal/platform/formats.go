package platform

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/berrythewa/clipdrive/internal/types"
)

// MIME types and X11 targets.
const (
	mimeText      = "text/plain"
	mimeUTF8Text  = "text/plain;charset=utf-8"
	mimeHTML      = "text/html"
	mimeRTF       = "text/rtf"
	mimeURI       = "text/uri-list"
	mimeFilenames = "x-special/gnome-copied-files"
)

// targetFormats lists, per format, the targets that carry it in
// preference order.
var targetFormats = map[types.Format][]string{
	types.FormatHTML:     {mimeHTML},
	types.FormatRTF:      {mimeRTF, "application/rtf", "text/richtext"},
	types.FormatText:     {mimeUTF8Text, "UTF8_STRING", mimeText, "STRING", "TEXT"},
	types.FormatFileList: {mimeURI, mimeFilenames},
}

// parseTargets splits a TARGETS or --list-types listing.
func parseTargets(output []byte) []string {
	var targets []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			targets = append(targets, line)
		}
	}
	return targets
}

// targetFor returns the best offered target for format.
func targetFor(format types.Format, offered []string) (string, bool) {
	for _, want := range targetFormats[format] {
		for _, t := range offered {
			if strings.EqualFold(t, want) {
				return t, true
			}
		}
	}
	return "", false
}

// parseFileList decodes gnome-copied-files and uri-list data into local
// paths. Comments and non-file URIs are dropped.
func parseFileList(data string) []string {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	lines := strings.Split(data, "\n")
	if len(lines) > 0 {
		switch strings.TrimSpace(lines[0]) {
		case "copy", "cut":
			lines = lines[1:]
		}
	}

	var paths []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p, ok := uriToPath(line); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func uriToPath(s string) (string, bool) {
	if filepath.IsAbs(s) {
		return filepath.Clean(s), true
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}
	return filepath.Clean(u.Path), true
}

func pathToURI(p string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String()
}

// formatURIList renders paths as text/uri-list.
func formatURIList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(pathToURI(p))
		b.WriteString("\r\n")
	}
	return b.String()
}

func richTarget(format types.Format) (string, bool) {
	switch format {
	case types.FormatHTML:
		return mimeHTML, true
	case types.FormatRTF:
		return mimeRTF, true
	}
	return "", false
}
