// Package features turns cleaned customer records into numeric features.
//
// Two-valued categorical columns become a single 0/1 column through a
// BinaryRule. Many-valued categorical columns become indicator columns
// named "<column>_<value>", one per value except the lexicographically
// first (the baseline). Numeric columns pass through and booleans become
// 0/1. Missing and unmapped values always encode as 0.
package features

import (
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// IndicatorName returns the column name of the indicator for value of column.
func IndicatorName(column, value string) string {
	return column + "_" + value
}

// Encoder encodes batches for training and single records for serving.
type Encoder struct {
	binaryFields map[string]BinaryRule
	logger       *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithBinaryFields sets the fixed binary fields used by EncodeRecord.
func WithBinaryFields(fields map[string]BinaryRule) Option {
	return func(e *Encoder) { e.binaryFields = fields }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) { e.logger = logger }
}

// NewEncoder creates an Encoder with the default serving binary fields.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		binaryFields: DefaultBinaryFields(),
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// BinaryFields returns the fixed binary fields used for single records.
func (e *Encoder) BinaryFields() map[string]BinaryRule {
	out := make(map[string]BinaryRule, len(e.binaryFields))
	for k, v := range e.binaryFields {
		out[k] = v
	}
	return out
}

// Frame is an encoded batch.
type Frame struct {
	// Columns is the ordered feature list; persisted it becomes the schema.
	Columns []string
	Rows    [][]float64
	// Target names the label column; Labels is empty when there is none.
	Target string
	Labels []float64
	// Binary holds the rule applied to each binary-encoded column.
	Binary map[string]BinaryRule
	// Indicators holds the non-baseline values emitted per source column.
	Indicators map[string][]string
	// Baselines holds the omitted value per indicator-encoded column.
	Baselines map[string]string
}

// Len returns the number of encoded rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Dense returns the rows as a matrix.
func (f *Frame) Dense() *mat.Dense {
	if len(f.Rows) == 0 || len(f.Columns) == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, 0, len(f.Rows)*len(f.Columns))
	for _, r := range f.Rows {
		data = append(data, r...)
	}
	return mat.NewDense(len(f.Rows), len(f.Columns), data)
}

// WithLabels returns the header and rows with the label appended as the
// last column, the layout of the processed dataset file.
func (f *Frame) WithLabels() ([]string, [][]float64) {
	if f.Target == "" {
		return f.Columns, f.Rows
	}
	header := append(append([]string{}, f.Columns...), f.Target)
	rows := make([][]float64, len(f.Rows))
	for i, r := range f.Rows {
		rows[i] = append(append(make([]float64, 0, len(r)+1), r...), f.Labels[i])
	}
	return header, rows
}

type encoding int

const (
	encNumeric encoding = iota
	encBool
	encBinary
	encIndicator
)

type columnPlan struct {
	source string
	enc    encoding
	rule   BinaryRule
	values []string
}

// plan partitions the non-target columns of a batch by encoding.
func plan(b core.Batch, target string) []columnPlan {
	var plans []columnPlan
	for _, col := range b.Columns {
		if col == target {
			continue
		}
		switch b.ColumnKind(col) {
		case core.KindInt, core.KindFloat, core.KindMissing:
			plans = append(plans, columnPlan{source: col, enc: encNumeric})
		case core.KindBool:
			plans = append(plans, columnPlan{source: col, enc: encBool})
		default:
			values := b.Distinct(col)
			if rule, ok := RuleFor(values); ok {
				plans = append(plans, columnPlan{source: col, enc: encBinary, rule: rule})
				continue
			}
			plans = append(plans, columnPlan{source: col, enc: encIndicator, values: values})
		}
	}
	return plans
}

// EncodeBatch encodes a cleaned batch. The target column is excluded from
// the features and returned as Labels.
//
// Output columns keep the input order for numeric, boolean and binary
// columns; indicator columns follow, grouped by source column in input
// order with values sorted. The result depends only on the batch's own
// value sets: an indicator for a value the batch never contains is not
// emitted.
func (e *Encoder) EncodeBatch(b core.Batch, target string) (*Frame, error) {
	if target != "" && !b.Has(target) {
		return nil, &core.MissingColumnError{Column: target}
	}

	plans := plan(b, target)
	f := &Frame{
		Target:     target,
		Binary:     make(map[string]BinaryRule),
		Indicators: make(map[string][]string),
		Baselines:  make(map[string]string),
	}

	index := make(map[string]int)
	addColumn := func(name string) error {
		if _, dup := index[name]; dup {
			return fmt.Errorf("encoded column %q produced twice", name)
		}
		index[name] = len(f.Columns)
		f.Columns = append(f.Columns, name)
		return nil
	}

	var indicators []columnPlan
	for _, p := range plans {
		switch p.enc {
		case encIndicator:
			indicators = append(indicators, p)
			continue
		case encBinary:
			f.Binary[p.source] = p.rule
		}
		if err := addColumn(p.source); err != nil {
			return nil, err
		}
	}
	for _, p := range indicators {
		if len(p.values) == 0 {
			continue
		}
		f.Baselines[p.source] = p.values[0]
		kept := p.values[1:]
		f.Indicators[p.source] = kept
		for _, v := range kept {
			if err := addColumn(IndicatorName(p.source, v)); err != nil {
				return nil, err
			}
		}
	}

	f.Rows = make([][]float64, len(b.Rows))
	for i, r := range b.Rows {
		vec := make([]float64, len(f.Columns))
		for _, p := range plans {
			v := r[p.source]
			switch p.enc {
			case encNumeric:
				if n, ok := v.Number(); ok {
					vec[index[p.source]] = n
				}
			case encBool:
				if t, ok := v.Truth(); ok && t {
					vec[index[p.source]] = 1
				}
			case encBinary:
				vec[index[p.source]] = p.rule.Encode(v)
			case encIndicator:
				if v.IsMissing() {
					continue
				}
				if j, ok := index[IndicatorName(p.source, v.String())]; ok {
					vec[j] = 1
				}
			}
		}
		f.Rows[i] = vec
	}

	if target != "" {
		f.Labels = make([]float64, len(b.Rows))
		for i, r := range b.Rows {
			label, ok := r[target].ToFloat()
			if !ok {
				return nil, &core.SchemaError{Column: target, Row: i, Value: r[target].String()}
			}
			f.Labels[i] = label
		}
	}

	e.logger.Debug("encoded batch",
		"rows", f.Len(),
		"features", len(f.Columns),
		"binary_columns", len(f.Binary),
		"indicator_sources", len(f.Indicators),
	)
	return f, nil
}

// BinaryColumns returns the sorted names of the binary-encoded columns.
func (f *Frame) BinaryColumns() []string {
	out := make([]string, 0, len(f.Binary))
	for c := range f.Binary {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
