package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"aggregator/internal/etl"
	"aggregator/internal/storage"
)

const maxCellWidth = 60

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

// renderRunResult prints the per-source outcome table followed by the matches.
func renderRunResult(out io.Writer, r *etl.RunResult, columns int) {
	t := newTable(out)
	t.SetTitle(fmt.Sprintf("Run %s (%s)", r.RunID, r.Status))
	t.AppendHeader(table.Row{"Source", "Input", "Records", "Error"})
	for _, s := range r.Sources {
		t.AppendRow(table.Row{s.Source, s.Input, s.Records, s.Error})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("written %d", r.RowsWritten),
		r.RowsRead,
		fmt.Sprintf("truncated %d", r.Truncated),
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxCellWidth},
		{Number: 4, WidthMax: maxCellWidth},
	})
	t.Render()

	fmt.Fprintln(out)
	renderMatches(out, columns, r.Query.Column, r.Query.Value, r.Matches)

	if r.Error != "" {
		fmt.Fprintf(out, "\nerror: %s\n", r.Error)
	}
}

// renderMatches prints stored rows with one column per value slot.
func renderMatches(out io.Writer, columns int, column, value string, rows []etl.StoredRow) {
	t := newTable(out)
	t.SetTitle(fmt.Sprintf("Matches for %s = %q", column, value))

	header := table.Row{"ID", "Source"}
	for k := 1; k <= columns; k++ {
		header = append(header, storage.ColumnName(k))
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := table.Row{r.ID, r.Source}
		for _, c := range r.Columns {
			row = append(row, c)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"Total", len(rows)})
	t.Render()
}

func renderSchema(out io.Writer, path string, columns []string, counts map[etl.SourceKind]int) {
	t := newTable(out)
	t.SetTitle(fmt.Sprintf("%s: %s", path, storage.RecordsTable))
	t.AppendHeader(table.Row{"Column", "Type"})
	for _, c := range columns {
		typ := "TEXT"
		if c == "id" {
			typ = "INTEGER PRIMARY KEY"
		}
		t.AppendRow(table.Row{c, typ})
	}
	t.Render()

	fmt.Fprintln(out)
	c := newTable(out)
	c.AppendHeader(table.Row{"Source", "Rows"})
	total := 0
	for _, kind := range etl.AllKinds {
		c.AppendRow(table.Row{kind, counts[kind]})
		total += counts[kind]
	}
	c.AppendFooter(table.Row{"Total", total})
	c.Render()
}

func renderRuns(out io.Writer, runs []etl.RunLog) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Status", "Read", "Written", "Truncated", "Failed Sources"})
	for _, r := range runs {
		var failed []string
		for _, s := range r.Sources {
			if s.Error != "" {
				failed = append(failed, string(s.Source))
			}
		}
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			r.Status,
			r.RowsRead,
			r.RowsWritten,
			r.Truncated,
			strings.Join(failed, ","),
		})
	}
	t.AppendFooter(table.Row{"Total", len(runs)})
	t.Render()
}

func renderSources(out io.Writer, specs []etl.SourceSpec, inputs etl.Inputs) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Kind", "Label", "Input", "Configured", "Key", "Default", "Help"})
	for _, spec := range specs {
		for i, f := range spec.ConfigFields {
			kind, label, input, configured := "", "", "", ""
			if i == 0 {
				kind, label, input, configured = string(spec.Kind), spec.Label, spec.Input, inputs[spec.Kind]
			}
			key := f.Key
			if f.Required {
				key += " *"
			}
			t.AppendRow(table.Row{kind, label, input, configured, key, f.Default, f.Help})
		}
		t.AppendSeparator()
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 7, WidthMax: maxCellWidth}})
	t.Render()
}
