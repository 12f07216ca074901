package format

import "github.com/berrythewa/clipdrive/internal/types"

// Options controls formatting behavior
type Options struct {
	UseColors bool
	MaxWidth  int // Max error column width (0 = no limit)
	// Relative renders times as "5 minutes ago".
	Relative bool
	// StatusColor picks the color of a status cell; nil leaves it plain.
	StatusColor func(status string) string
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		UseColors: true,
		MaxWidth:  48,
		Relative:  true,
	}
}

// FormatColors maps snapshot formats to colors
var FormatColors = map[types.Format]string{
	types.FormatText:        Cyan,
	types.FormatHTML:        Green,
	types.FormatRTF:         Gray,
	types.FormatFileList:    Yellow,
	types.FormatUnsupported: Magenta,
}
