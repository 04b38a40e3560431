package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderPairs renders a two-column key/value table. The CLI only ever
// tabulates labelled values (metrics, settings), so the helper is fixed at
// two columns; rightAlign applies to the value column.
func renderPairs(keyHeader, valueHeader string, rows [][2]string, rightAlign bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	// Headers are passed mixed-case ("Metric", "Setting"); keep them as-is
	// instead of StyleRounded's default uppercasing.
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{keyHeader, valueHeader})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}

	valueAlign := text.AlignLeft
	if rightAlign {
		valueAlign = text.AlignRight
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: valueAlign, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
