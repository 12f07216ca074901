package clipboard

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/types"
)

// priority is the order representations are tested in. The first one
// that is advertised and extracts cleanly wins.
var priority = []types.Format{
	types.FormatHTML,
	types.FormatRTF,
	types.FormatText,
	types.FormatFileList,
}

// Classifier picks the richest usable representation of a payload.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a classifier. A nil logger discards output.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger}
}

// Classify returns the content of the highest priority representation.
// A representation that is advertised but fails to extract is logged and
// treated as absent. With nothing usable the result is FormatUnsupported.
func (c *Classifier) Classify(p Payload) *types.ClipboardContent {
	now := time.Now()
	if p == nil {
		return &types.ClipboardContent{Format: types.FormatUnsupported, Created: now}
	}

	for _, f := range priority {
		if !c.has(p, f) {
			continue
		}
		content, err := c.extract(p, f)
		if err != nil {
			c.logger.Warn("Clipboard format advertised but extraction failed",
				zap.String("format", f.Short()),
				zap.Error(err))
			continue
		}
		if content.IsEmpty() && f != types.FormatText {
			c.logger.Debug("Clipboard format is empty, skipping", zap.String("format", f.Short()))
			continue
		}
		content.Created = now
		return content
	}

	return &types.ClipboardContent{Format: types.FormatUnsupported, Created: now}
}

func (c *Classifier) has(p Payload, f types.Format) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while probing clipboard format",
				zap.String("format", f.Short()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			ok = false
		}
	}()
	return p.Has(f)
}

func (c *Classifier) extract(p Payload, f types.Format) (content *types.ClipboardContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("panic extracting %s: %v", f.Short(), r)
		}
	}()

	if f == types.FormatFileList {
		files, err := p.Files()
		if err != nil {
			return nil, err
		}
		return &types.ClipboardContent{Format: f, Files: files}, nil
	}

	text, err := p.Text(f)
	if err != nil {
		return nil, err
	}
	return &types.ClipboardContent{Format: f, Text: text}, nil
}
