package cmd

import (
	"github.com/spf13/cobra"
)

// GetCommands returns all commands for registration
func GetCommands() []*cobra.Command {
	return []*cobra.Command{
		newRunCmd(),
		newRestoreCmd(),
		newPersistCmd(),
		newClearCmd(),
		newCancelCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newVolumesCmd(),
		newConfigCmd(),
		newVersionCmd(),
	}
}
