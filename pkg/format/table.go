package format

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/internal/volume"
)

func newTable(opts Options) table.Writer {
	tw := table.NewWriter()
	if opts.UseColors {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	return tw
}

// HistoryTable renders journal entries, newest first as given.
func HistoryTable(entries []types.JournalEntry, opts Options, now time.Time) string {
	tw := newTable(opts)
	tw.AppendHeader(table.Row{"When", "Op", "Status", "Format", "Items", "Took", "Error"})

	for _, e := range entries {
		when := e.Time.Local().Format("2006-01-02 15:04:05")
		if opts.Relative {
			when = FormatRelativeTime(e.Time, now)
		}
		items := ""
		if e.Items > 0 {
			items = strconv.Itoa(e.Items)
		}
		format := ""
		if e.Format != "" {
			format = ColorizeIf(e.Format.Short(), FormatColors[e.Format], opts.UseColors)
		}
		msg := TruncateText(e.Error, opts.MaxWidth)
		if e.Cleanup > 0 {
			msg = TruncateText(strconv.Itoa(e.Cleanup)+" cleanup failure(s) "+msg, opts.MaxWidth)
		}
		status := e.Status
		if opts.StatusColor != nil {
			status = ColorizeIf(status, opts.StatusColor(status), opts.UseColors)
		}
		tw.AppendRow(table.Row{
			when,
			e.Op,
			status,
			format,
			items,
			FormatDuration(e.Duration),
			msg,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return tw.Render()
}

// VolumesTable renders mounted volumes, marking those carrying label.
func VolumesTable(vols []volume.Volume, label string, opts Options) string {
	tw := newTable(opts)
	tw.AppendHeader(table.Row{"", "Label", "Mount", "Device", "FS", "Removable", "Ready"})

	for _, v := range vols {
		mark := ""
		if label != "" && v.Label == label {
			mark = ColorizeIf("*", Green, opts.UseColors)
		}
		tw.AppendRow(table.Row{
			mark,
			v.Label,
			v.Root,
			v.Device,
			v.FSType,
			yesNo(v.Removable),
			yesNo(v.Ready),
		})
	}
	return tw.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
