// Package cleaner normalizes raw customer batches before feature encoding.
package cleaner

import (
	"log/slog"
	"math"
	"strings"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// Default column names of the telco churn dataset.
const (
	DefaultTargetColumn = "Churn"
	DefaultIDColumn     = "customerID"
)

// Options configures a Cleaner.
type Options struct {
	// TargetColumn is converted to 0/1.
	TargetColumn string
	// DropColumns are identifier columns removed without being parsed.
	DropColumns []string
	// NumericColumns are coerced to decimals; unparsable cells become missing.
	NumericColumns []string
	// IntegerColumns are coerced to integers; unparsable cells become missing.
	IntegerColumns []string
	// RequiredColumns must be present after header trimming. When nil it
	// defaults to the target, drop, numeric and integer columns.
	RequiredColumns []string
}

// DefaultOptions returns the options for the telco churn dataset.
func DefaultOptions() Options {
	return Options{
		TargetColumn:   DefaultTargetColumn,
		DropColumns:    []string{DefaultIDColumn},
		NumericColumns: []string{"TotalCharges"},
		IntegerColumns: []string{"SeniorCitizen"},
	}
}

func (o Options) required() []string {
	if o.RequiredColumns != nil {
		return o.RequiredColumns
	}
	var out []string
	if o.TargetColumn != "" {
		out = append(out, o.TargetColumn)
	}
	out = append(out, o.DropColumns...)
	out = append(out, o.NumericColumns...)
	out = append(out, o.IntegerColumns...)
	return out
}

// Cleaner trims headers, drops identifiers, encodes the target label and
// repairs numeric cells.
type Cleaner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Cleaner. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cleaner{opts: opts, logger: logger}
}

// Options returns the cleaner configuration.
func (c *Cleaner) Options() Options { return c.opts }

// Clean returns a cleaned copy of the batch. The input is never modified.
//
// Structural problems fail fast: a missing required column yields a
// *core.MissingColumnError and an unrecognized target label a
// *core.SchemaError. Unparsable numeric cells are not errors; they become
// missing and every missing numeric cell is then filled with 0.
func (c *Cleaner) Clean(in core.Batch) (core.Batch, error) {
	out := trimHeaders(in)

	for _, col := range c.opts.required() {
		if !out.Has(col) {
			return core.Batch{}, &core.MissingColumnError{Column: col}
		}
	}

	out = dropColumns(out, c.opts.DropColumns)

	if c.opts.TargetColumn != "" && out.Has(c.opts.TargetColumn) {
		if err := encodeTarget(out, c.opts.TargetColumn); err != nil {
			return core.Batch{}, err
		}
	}

	coerced := 0
	for _, col := range c.opts.NumericColumns {
		coerced += coerceColumn(out, col, false)
	}
	for _, col := range c.opts.IntegerColumns {
		coerced += coerceColumn(out, col, true)
	}

	declared := make(map[string]core.Kind)
	for _, col := range c.opts.NumericColumns {
		declared[col] = core.KindFloat
	}
	for _, col := range c.opts.IntegerColumns {
		declared[col] = core.KindInt
	}

	filled := 0
	for _, col := range out.Columns {
		if col == c.opts.TargetColumn {
			continue
		}
		kind := out.ColumnKind(col)
		if kind == core.KindMissing {
			kind = declared[col]
		}
		if kind != core.KindInt && kind != core.KindFloat {
			continue
		}
		filled += fillZero(out, col, kind)
	}

	c.logger.Debug("cleaned batch",
		"rows", out.Len(),
		"columns", len(out.Columns),
		"coerced_to_missing", coerced,
		"filled_with_zero", filled,
	)
	return out, nil
}

// trimHeaders copies the batch under trimmed column names. When two names
// collide after trimming the first one wins.
func trimHeaders(in core.Batch) core.Batch {
	out := core.Batch{Rows: make([]core.Record, len(in.Rows))}
	rename := make(map[string]string, len(in.Columns))
	for _, col := range in.Columns {
		name := strings.TrimSpace(col)
		if out.Has(name) {
			continue
		}
		rename[col] = name
		out.Columns = append(out.Columns, name)
	}
	for i, r := range in.Rows {
		rec := make(core.Record, len(rename))
		for from, to := range rename {
			rec[to] = r[from]
		}
		out.Rows[i] = rec
	}
	return out
}

func dropColumns(b core.Batch, drop []string) core.Batch {
	if len(drop) == 0 {
		return b
	}
	skip := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		skip[d] = struct{}{}
	}
	cols := b.Columns[:0:0]
	for _, col := range b.Columns {
		if _, ok := skip[col]; !ok {
			cols = append(cols, col)
		}
	}
	for _, r := range b.Rows {
		for d := range skip {
			delete(r, d)
		}
	}
	b.Columns = cols
	return b
}

func encodeTarget(b core.Batch, col string) error {
	for i, r := range b.Rows {
		label, ok := targetLabel(r[col])
		if !ok {
			return &core.SchemaError{Column: col, Row: i, Value: r[col].String()}
		}
		r[col] = core.Int(label)
	}
	return nil
}

func targetLabel(v core.Value) (int64, bool) {
	switch v.Kind() {
	case core.KindString:
		switch strings.TrimSpace(v.String()) {
		case "Yes":
			return 1, true
		case "No":
			return 0, true
		}
	case core.KindInt, core.KindFloat:
		n, _ := v.Number()
		if n == 0 || n == 1 {
			return int64(n), true
		}
	case core.KindBool:
		if t, _ := v.Truth(); t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// coerceColumn converts a column to numbers in place and returns how many
// non-missing cells could not be parsed.
func coerceColumn(b core.Batch, col string, integer bool) int {
	failed := 0
	for _, r := range b.Rows {
		v := r[col]
		if v.IsMissing() {
			continue
		}
		f, ok := v.ToFloat()
		switch {
		case !ok:
			failed++
			r[col] = core.Missing()
		case integer:
			r[col] = core.Int(int64(math.Trunc(f)))
		case v.Kind() == core.KindInt:
			// already numeric
		default:
			r[col] = core.Float(f)
		}
	}
	return failed
}

func fillZero(b core.Batch, col string, kind core.Kind) int {
	zero := core.Float(0)
	if kind == core.KindInt {
		zero = core.Int(0)
	}
	n := 0
	for _, r := range b.Rows {
		if r[col].IsMissing() {
			r[col] = zero
			n++
		}
	}
	return n
}
