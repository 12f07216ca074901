package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/common"
	"github.com/berrythewa/clipdrive/internal/config"
)

var (
	// Global flags
	configFile string
	logLevel   string
	quiet      bool

	// Shared resources, set up before any command runs
	cfg    *config.Config
	logger *zap.Logger
)

// newRootCmd builds the command tree. Running it without a subcommand
// starts the daemon in the foreground.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clipdrive",
		Short: "Mirror the clipboard onto a removable drive",
		Long: `clipdrive keeps the desktop clipboard mirrored onto a removable volume
identified by its label. Every clipboard change is written to the volume,
and the clipboard is restored from the volume at startup and whenever the
volume is plugged back in.

Running clipdrive without a command starts the daemon in the foreground.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/clipdrive/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not mirror the log to the terminal")

	root.AddCommand(GetCommands()...)
	return root
}

// setup loads the configuration and builds the logger.
func setup() error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err = common.NewLogger(cfg, common.LoggerOptions{Level: logLevel, Quiet: quiet})
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	logger.Debug("Configuration loaded",
		zap.String("config", cfg.SystemPaths.ConfigFile),
		zap.String("label", cfg.VolumeLabel),
		zap.String("data_dir", cfg.SystemPaths.DataDir))
	return nil
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := ExecuteContext(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ExecuteContext runs the command tree with explicit arguments and streams.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// useColors reports whether w is a terminal.
func useColors(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && common.IsTerminal(f)
}
