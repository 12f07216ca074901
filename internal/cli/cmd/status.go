package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipdrive/internal/ipc"
	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/internal/volume"
	"github.com/berrythewa/clipdrive/pkg/format"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and volume status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()

			st := types.DaemonStatus{VolumeLabel: cfg.VolumeLabel}
			resp, err := ipc.SendRequest(ctx, cfg.SystemPaths.SocketPath, &ipc.Request{Command: ipc.CmdStatus})
			switch {
			case err == nil:
				if err := resp.Err(); err != nil {
					return err
				}
				if err := resp.Decode(&st); err != nil {
					return err
				}
			case errors.Is(err, ipc.ErrNoDaemon):
				locator := volume.NewLocator(nil, logger.Named("volume"), volume.WithRequireRemovable(cfg.Sync.RequireRemovable))
				if root, ok := locator.Locate(cfg.VolumeLabel); ok {
					st.VolumeRoot = root
				}
			default:
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(out, st, time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output status as JSON")
	return cmd
}

func printStatus(w io.Writer, st types.DaemonStatus, now time.Time) {
	colors := useColors(w)
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-14s %s\n", label+":", value)
	}

	if st.Running {
		row("Daemon", format.ColorizeIf("running", format.Green, colors)+fmt.Sprintf(" (pid %d, since %s)", st.PID, format.FormatRelativeTime(st.StartedAt, now)))
		row("Engine", st.EngineState)
		row("Notifier", st.Notifier)
		row("Device watch", fmt.Sprintf("%t", st.DeviceWatch))
	} else {
		row("Daemon", format.ColorizeIf("not running", format.Yellow, colors))
	}

	label := st.VolumeLabel
	if label == "" {
		label = format.DimIf("(not set)", colors)
	}
	row("Label", label)
	if st.VolumeRoot != "" {
		row("Volume", format.ColorizeIf(st.VolumeRoot, format.Green, colors))
	} else {
		row("Volume", format.DimIf("absent", colors))
	}

	if e := st.LastOutcome; e != nil {
		row("Last", fmt.Sprintf("%s %s %s", e.Op,
			format.ColorizeIf(e.Status, statusColor(e.Status), colors),
			format.FormatRelativeTime(e.Time, now)))
		if e.Error != "" {
			row("", e.Error)
		}
	}
}
