package platform

import (
	"context"
	"fmt"

	cliplib "github.com/atotto/clipboard"
	"github.com/berrythewa/clipdrive/internal/clipboard"
	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/pkg/utils"
	"go.uber.org/zap"
)

// TextClipboard handles plain text only, through atotto/clipboard.
type TextClipboard struct {
	read   func() (string, error)
	write  func(string) error
	logger *zap.Logger
}

// NewTextClipboard creates a text-only clipboard.
func NewTextClipboard(logger *zap.Logger) *TextClipboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextClipboard{read: cliplib.ReadAll, write: cliplib.WriteAll, logger: logger}
}

func (t *TextClipboard) Name() string { return "text" }

func (t *TextClipboard) Snapshot(context.Context) (clipboard.Payload, error) {
	p := clipboard.NewMemoryPayload()
	text, err := t.read()
	if err != nil {
		t.logger.Debug("Clipboard text unavailable", zap.Error(err))
		return p, nil
	}
	if text == "" {
		return p, nil
	}
	return p.WithText(types.FormatText, text), nil
}

func (t *TextClipboard) Fingerprint(context.Context) (string, error) {
	text, err := t.read()
	if err != nil {
		return "", err
	}
	return utils.HashStrings(text), nil
}

func (t *TextClipboard) WriteText(_ context.Context, text string) error {
	if err := t.write(text); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}

func (t *TextClipboard) WriteRich(context.Context, types.Format, string) error {
	return fmt.Errorf("%w: rich text", ErrUnsupported)
}

func (t *TextClipboard) WriteFiles(context.Context, []string) error {
	return fmt.Errorf("%w: file lists", ErrUnsupported)
}
