//go:build !linux

package volume

import (
	"errors"
	"os"
)

// ErrUnsupported is returned by the default enumerator on platforms
// without a mount table reader.
var ErrUnsupported = errors.New("volume enumeration is not supported on this platform")

func probeReady(root string) bool {
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

// DefaultEnumerator returns the platform enumerator.
func DefaultEnumerator() Enumerator {
	return EnumeratorFunc(func() ([]Volume, error) {
		return nil, ErrUnsupported
	})
}
