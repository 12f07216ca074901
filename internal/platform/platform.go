// Package platform reads and writes the system clipboard.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/berrythewa/clipdrive/internal/clipboard"
	"github.com/berrythewa/clipdrive/internal/types"
	"go.uber.org/zap"
)

var (
	// ErrUnsupported is returned for operations the backend cannot do.
	// Callers should not retry it.
	ErrUnsupported = errors.New("clipboard operation not supported by backend")

	// ErrNoBackend is returned when no clipboard tool is usable.
	ErrNoBackend = errors.New("no clipboard backend available")
)

// Reader captures the current clipboard content.
type Reader interface {
	// Snapshot returns a payload describing the formats on offer right
	// now. Content is extracted lazily by the classifier.
	Snapshot(ctx context.Context) (clipboard.Payload, error)

	// Fingerprint summarises the clipboard cheaply for change polling.
	Fingerprint(ctx context.Context) (string, error)
}

// Writer replaces the clipboard content.
type Writer interface {
	WriteText(ctx context.Context, text string) error
	WriteRich(ctx context.Context, format types.Format, data string) error
	WriteFiles(ctx context.Context, paths []string) error
}

// Clipboard is a full backend.
type Clipboard interface {
	Reader
	Writer
	Name() string
}

// Factory builds a Clipboard for a backend name (auto, x11, wayland, poll).
type Factory func(backend string, logger *zap.Logger) (Clipboard, error)

var (
	factoryMu sync.RWMutex
	factory   Factory
)

// RegisterFactory installs the platform clipboard factory.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factory = f
}

// New creates the platform clipboard.
func New(backend string, logger *zap.Logger) (Clipboard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	factoryMu.RLock()
	f := factory
	factoryMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: nothing registered for this platform", ErrNoBackend)
	}
	cb, err := f(backend, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("Clipboard backend selected", zap.String("backend", cb.Name()))
	return cb, nil
}
