package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipdrive/internal/daemon"
	"github.com/berrythewa/clipdrive/internal/ipc"
	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/pkg/format"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit    int
		asJSON   bool
		absolute bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent persist and restore outcomes",
		Long: `Show recent persist, restore and clear outcomes from the local journal.

Examples:
  clipdrive history              # last 20 outcomes
  clipdrive history -n 50        # last 50 outcomes
  clipdrive history --json       # machine-readable output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if entries == nil {
					entries = []types.JournalEntry{}
				}
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history yet.")
				return nil
			}

			opts := format.DefaultOptions()
			opts.UseColors = useColors(out)
			opts.Relative = !absolute
			opts.StatusColor = statusColor
			fmt.Fprintln(out, format.HistoryTable(entries, opts, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries to show (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output history as JSON")
	cmd.Flags().BoolVar(&absolute, "absolute", false, "show absolute timestamps")
	return cmd
}

// loadHistory asks the daemon, which holds the journal open, or reads the
// journal directly when no daemon is running.
func loadHistory(ctx context.Context, limit int) ([]types.JournalEntry, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	resp, err := ipc.SendRequest(qctx, cfg.SystemPaths.SocketPath, &ipc.Request{
		Command: ipc.CmdHistory,
		Args:    map[string]any{"limit": limit},
	})
	switch {
	case err == nil:
		if err := resp.Err(); err != nil {
			return nil, err
		}
		var entries []types.JournalEntry
		if len(resp.Data) > 0 {
			if err := resp.Decode(&entries); err != nil {
				return nil, err
			}
		}
		return entries, nil
	case errors.Is(err, ipc.ErrNoDaemon):
		d, err := daemon.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		return daemon.History(d, limit)
	default:
		return nil, err
	}
}
