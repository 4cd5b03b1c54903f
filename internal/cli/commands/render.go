package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/churnline/internal/cli/config"
)

// renderer writes command results in the configured output format.
type renderer struct {
	w      io.Writer
	format string
}

func newRenderer(w io.Writer, format string) *renderer {
	if format == "" {
		format = config.OutputText
	}
	return &renderer{w: w, format: format}
}

func (r *renderer) json() bool { return r.format == config.OutputJSON }

// Table renders rows under cols, or v when the output is JSON.
func (r *renderer) Table(cols []string, rows [][]string, v any) error {
	switch r.format {
	case config.OutputJSON:
		return renderJSON(r.w, v)
	case config.OutputMarkdown:
		return renderMarkdown(r.w, cols, rows)
	default:
		return renderTable(r.w, cols, rows)
	}
}

// Printf writes free text; it is suppressed for JSON output.
func (r *renderer) Printf(format string, args ...any) {
	if r.json() {
		return
	}
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func renderTable(w io.Writer, cols []string, rows [][]string) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderMarkdown(w io.Writer, cols []string, rows [][]string) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range rows {
		values := make([]string, len(r))
		for i, v := range r {
			values[i] = strings.ReplaceAll(v, "|", "\\|")
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.4f", f)
}
