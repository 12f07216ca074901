//go:build !linux

package volume

import (
	"context"

	"go.uber.org/zap"
)

type noNudger struct{}

func (noNudger) Nudges(context.Context) (<-chan struct{}, error) {
	return nil, ErrUnsupported
}

// DefaultNudger returns the platform device event source.
func DefaultNudger(*zap.Logger) Nudger {
	return noNudger{}
}
