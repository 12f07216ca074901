//go:build !linux

package notify

import (
	"errors"

	"go.uber.org/zap"
)

func newX11Source(*zap.Logger) (Source, error) {
	return nil, errors.New("x11 clipboard notifications are only available on linux")
}
