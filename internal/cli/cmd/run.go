package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/daemon"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Long: `Run the clipdrive daemon in the foreground until interrupted.

The daemon restores the clipboard from the configured volume once at
startup, then persists every clipboard change to it and restores again
whenever the volume is reconnected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

func runDaemon(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.VolumeLabel == "" {
		logger.Warn("No volume label configured; set one with 'clipdrive config set-label <label>'")
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := d.Run(ctx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("%w (see 'clipdrive status')", err)
		}
		logger.Error("Daemon exited with error", zap.Error(err))
		return err
	}
	return nil
}
