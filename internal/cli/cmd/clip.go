package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipdrive/internal/daemon"
	"github.com/berrythewa/clipdrive/internal/engine"
	"github.com/berrythewa/clipdrive/internal/ipc"
	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/pkg/format"
)

const queryTimeout = 5 * time.Second

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the clipboard from the volume",
		Long: `Restore the clipboard from the snapshot stored on the configured volume.
Goes through the running daemon if there is one, otherwise runs in-process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, ipc.CmdRestore, engine.OpRestore)
		},
	}
}

func newPersistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "persist",
		Short: "Write the current clipboard to the volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, ipc.CmdPersist, engine.OpPersist)
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored snapshot from the volume",
		Long: `Remove the manifest, auxiliary files and copied items of the current
snapshot from the configured volume. Nothing else on the volume is touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, ipc.CmdClear, engine.OpClear)
		},
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the persist the daemon is currently copying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()
			resp, err := ipc.SendRequest(ctx, cfg.SystemPaths.SocketPath, &ipc.Request{Command: ipc.CmdCancel})
			if errors.Is(err, ipc.ErrNoDaemon) {
				return errors.New("no daemon running")
			}
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

// runOp asks the daemon to perform op, or performs it here when no daemon
// answers.
func runOp(cmd *cobra.Command, command string, op engine.Op) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var entry types.JournalEntry
	resp, err := ipc.SendRequest(ctx, cfg.SystemPaths.SocketPath, &ipc.Request{Command: command})
	switch {
	case err == nil:
		if len(resp.Data) == 0 {
			return resp.Err()
		}
		if derr := resp.Decode(&entry); derr != nil {
			return derr
		}
	case errors.Is(err, ipc.ErrNoDaemon):
		logger.Debug("No daemon answering, running in-process")
		d, derr := daemon.New(cfg, logger)
		if derr != nil {
			return derr
		}
		out, derr := daemon.RunOnce(ctx, d, op)
		if derr != nil {
			return derr
		}
		entry = out.Entry()
	default:
		return err
	}

	printOutcome(cmd.OutOrStdout(), entry)
	status := engine.Status(entry.Status)
	if !status.OK() && !status.Routine() {
		return fmt.Errorf("%s %s", entry.Op, entry.Status)
	}
	return nil
}

func printOutcome(w io.Writer, e types.JournalEntry) {
	colors := useColors(w)
	line := fmt.Sprintf("%s: %s", e.Op, format.ColorizeIf(e.Status, statusColor(e.Status), colors))
	if e.Format != "" {
		line += " (" + e.Format.Short()
		if e.Items > 0 {
			line += fmt.Sprintf(", %d item(s)", e.Items)
		}
		line += ")"
	}
	if e.Volume != "" {
		line += " on " + e.Volume
	}
	fmt.Fprintln(w, line)
	if e.Error != "" {
		fmt.Fprintln(w, "  error:", e.Error)
	}
	if e.Cleanup > 0 {
		fmt.Fprintf(w, "  %d stale file(s) could not be removed\n", e.Cleanup)
	}
}

// statusColor picks a color for an outcome status.
func statusColor(status string) string {
	s := engine.Status(status)
	switch {
	case s.OK():
		return format.Green
	case s.Routine():
		return format.Dim
	case s == engine.StatusFailed:
		return format.Red
	default:
		return format.Yellow
	}
}
