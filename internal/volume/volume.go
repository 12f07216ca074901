// Package volume resolves a configured volume label to the root of a
// mounted removable volume and watches for that volume coming and going.
package volume

import (
	"go.uber.org/zap"
)

// Volume is one mounted filesystem as seen by an Enumerator.
type Volume struct {
	Device    string
	Label     string
	Root      string
	FSType    string
	Removable bool
	Ready     bool
}

// Enumerator lists mounted volumes. Implementations must return them in a
// stable order.
type Enumerator interface {
	Volumes() ([]Volume, error)
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func() ([]Volume, error)

func (f EnumeratorFunc) Volumes() ([]Volume, error) { return f() }

// Locator finds the root of the volume carrying a label. It never caches:
// devices are plugged and unplugged between calls.
type Locator struct {
	enum             Enumerator
	logger           *zap.Logger
	requireRemovable bool
}

// Option configures a Locator.
type Option func(*Locator)

// WithRequireRemovable controls whether fixed disks are ignored.
func WithRequireRemovable(required bool) Option {
	return func(l *Locator) { l.requireRemovable = required }
}

// NewLocator creates a Locator over enum. A nil enum uses the platform
// default.
func NewLocator(enum Enumerator, logger *zap.Logger, opts ...Option) *Locator {
	if enum == nil {
		enum = DefaultEnumerator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Locator{
		enum:             enum,
		logger:           logger,
		requireRemovable: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the root of the first ready volume whose label equals
// label exactly. An empty label, an enumeration failure and no match all
// report absence.
func (l *Locator) Locate(label string) (string, bool) {
	if label == "" {
		l.logger.Debug("No volume label configured")
		return "", false
	}

	matches, err := l.Matches(label)
	if err != nil {
		l.logger.Warn("Failed to enumerate volumes", zap.Error(err))
		return "", false
	}
	if len(matches) == 0 {
		l.logger.Debug("Volume not present", zap.String("label", label))
		return "", false
	}
	if len(matches) > 1 {
		roots := make([]string, 0, len(matches))
		for _, m := range matches {
			roots = append(roots, m.Root)
		}
		l.logger.Warn("Several volumes share the configured label, using the first",
			zap.String("label", label),
			zap.Strings("roots", roots))
	}
	return matches[0].Root, true
}

// Matches returns every usable volume carrying label, in enumeration order.
func (l *Locator) Matches(label string) ([]Volume, error) {
	vols, err := l.enum.Volumes()
	if err != nil {
		return nil, err
	}

	var matches []Volume
	for _, v := range vols {
		if v.Label != label || !v.Ready {
			continue
		}
		if l.requireRemovable && !v.Removable {
			continue
		}
		matches = append(matches, v)
	}
	return matches, nil
}

// Volumes exposes the underlying enumeration for diagnostics.
func (l *Locator) Volumes() ([]Volume, error) {
	return l.enum.Volumes()
}
