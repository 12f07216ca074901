package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipdrive/internal/volume"
	"github.com/berrythewa/clipdrive/pkg/format"
)

func newVolumesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "List mounted volumes and their labels",
		Long: `List mounted volumes with their labels. The volume carrying the
configured label is marked with an asterisk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			locator := volume.NewLocator(nil, logger.Named("volume"))
			vols, err := locator.Volumes()
			if err != nil {
				return fmt.Errorf("failed to list volumes: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if vols == nil {
					vols = []volume.Volume{}
				}
				return enc.Encode(vols)
			}
			if len(vols) == 0 {
				fmt.Fprintln(out, "No volumes mounted.")
				return nil
			}
			opts := format.DefaultOptions()
			opts.UseColors = useColors(out)
			fmt.Fprintln(out, format.VolumesTable(vols, cfg.VolumeLabel, opts))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output volumes as JSON")
	return cmd
}
