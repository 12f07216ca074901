//go:build linux

package volume

import (
	"golang.org/x/sys/unix"
)

// probeReady reports whether root is a live, readable and writable mount.
func probeReady(root string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return false
	}
	if st.Blocks == 0 {
		return false
	}
	return unix.Access(root, unix.R_OK|unix.W_OK|unix.X_OK) == nil
}

// DefaultEnumerator returns the platform enumerator.
func DefaultEnumerator() Enumerator {
	return NewSysfsEnumerator()
}
