package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/clipdrive/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage clipdrive configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigSetLabelCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the file and directory locations in use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			p := cfg.SystemPaths
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:  %s\n", p.ConfigFile)
			fmt.Fprintf(out, "data:    %s\n", p.DataDir)
			fmt.Fprintf(out, "journal: %s\n", p.DBFile)
			fmt.Fprintf(out, "log:     %s\n", p.LogFile)
			fmt.Fprintf(out, "socket:  %s\n", p.SocketPath)
			fmt.Fprintf(out, "lock:    %s\n", p.LockFile)
		},
	}
}

func newConfigSetLabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-label <label>",
		Short: "Set the volume label to mirror onto",
		Long: `Set the label of the removable volume the clipboard is mirrored onto.
Pass an empty string to unset it. A running daemon picks the new label up
on its next operation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var label string
			err := config.Edit(cfg.SystemPaths.ConfigFile, func(c *config.Config) {
				c.SetVolumeLabel(args[0])
				label = c.VolumeLabel
			})
			if err != nil {
				return err
			}
			logger.Info("Volume label changed", zap.String("label", label))

			out := cmd.OutOrStdout()
			if label == "" {
				fmt.Fprintln(out, "Volume label unset.")
			} else {
				fmt.Fprintf(out, "Volume label set to %q.\n", label)
			}
			return nil
		},
	}
}
