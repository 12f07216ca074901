//go:build !linux

package platform

import (
	"fmt"

	cliplib "github.com/atotto/clipboard"
	"go.uber.org/zap"
)

func init() {
	RegisterFactory(func(backend string, logger *zap.Logger) (Clipboard, error) {
		if cliplib.Unsupported {
			return nil, ErrNoBackend
		}
		switch backend {
		case "", "auto", "poll":
			return NewTextClipboard(logger), nil
		}
		return nil, fmt.Errorf("%w: backend %q", ErrUnsupported, backend)
	})
}
