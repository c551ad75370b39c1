// Package report renders run results and comparisons for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/store"
)

// RenderRun writes a per-path latency table for one run.
func RenderRun(w io.Writer, r *bench.RunResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(r)
	}

	_, _ = fmt.Fprintf(w, "Test: %s (run %d)\n", r.TestName, r.RunID)
	_, _ = fmt.Fprintf(w, "Window: %s .. %s (%s)\n",
		r.StartedAt.Format(time.RFC3339),
		r.CompletedAt.Format(time.RFC3339),
		r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond),
	)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{
		"Path", "Count", "Errors", "Hits",
		"Min", "Mean", "Median", "P95", "P99", "Max", "StdDev",
	})

	for _, p := range r.Paths() {
		s := r.Summaries[p]

		row := table.Row{
			string(p),
			s.Count,
			fmt.Sprintf("%.1f%%", s.ErrorRate*100),
			s.CacheHits,
		}

		if s.Latency == nil {
			row = append(row, "-", "-", "-", "-", "-", "-", "-")
		} else {
			row = append(row,
				fmtDur(s.Latency.Min),
				fmtDur(s.Latency.Mean),
				fmtDur(s.Latency.Median),
				fmtDur(s.Latency.P95),
				fmtDur(s.Latency.P99),
				fmtDur(s.Latency.Max),
				fmtDur(s.Latency.StdDev),
			)
		}

		t.AppendRow(row)
	}

	if format == "md" || format == "markdown" {
		t.RenderMarkdown()
	} else {
		t.Render()
	}

	return nil
}

// RenderComparison writes a two-path comparison.
func RenderComparison(w io.Writer, c *store.Comparison, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(c)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Test", "Run", "Base", "Target", "Base Mean",
		"Target Mean", "Ratio", "Faster"})
	t.AppendRow(table.Row{
		c.TestName,
		c.RunID,
		string(c.Base),
		string(c.Target),
		fmtDur(time.Duration(c.BaseMean)),
		fmtDur(time.Duration(c.TargetMean)),
		fmt.Sprintf("%.2fx", c.Ratio),
		fmt.Sprintf("%s (+%.1f%%)", c.FasterPath, c.DifferencePercent),
	})

	if format == "md" || format == "markdown" {
		t.RenderMarkdown()
	} else {
		t.Render()
	}

	return nil
}

// RenderHistory writes a one-line-per-run summary of past runs.
func RenderHistory(w io.Writer, runs []*bench.RunResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "(no runs)")

		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Paths", "Samples", "Errors"})

	for _, r := range runs {
		var count, failures int

		for _, s := range r.Summaries {
			count += s.Count
			failures += s.Failures
		}

		t.AppendRow(table.Row{
			r.RunID,
			r.StartedAt.Format(time.RFC3339),
			fmt.Sprintf("%v", r.Paths()),
			count,
			failures,
		})
	}

	t.Render()

	return nil
}

// fmtDur rounds to the precision a latency table is read at.
func fmtDur(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Microsecond).String()
	}
}
