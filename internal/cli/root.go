// Package cli is the clipdrive command line entry point.
package cli

import (
	cmdpkg "github.com/berrythewa/clipdrive/internal/cli/cmd"
)

// SetVersionInfo records build information for the version command.
func SetVersionInfo(version, buildTime, commit string) {
	cmdpkg.SetVersionInfo(version, buildTime, commit)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	cmdpkg.Execute()
}
