package core

import "sort"

// Record is one customer: a mapping from field name to value.
type Record map[string]Value

// Clone returns a shallow copy of the record. Values are immutable so a
// shallow copy is independent of the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Batch is an ordered set of columns and the rows that carry them.
// During training the target label is one of the columns.
type Batch struct {
	Columns []string
	Rows    []Record
}

// NewBatch creates an empty batch with the given columns.
func NewBatch(columns ...string) Batch {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Batch{Columns: cols}
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

// Has reports whether the batch carries the column.
func (b Batch) Has(col string) bool {
	for _, c := range b.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Append adds a row. Fields not listed in Columns are kept but ignored by
// column-oriented helpers.
func (b *Batch) Append(r Record) {
	b.Rows = append(b.Rows, r)
}

// Column returns the values of a column, Missing where a row lacks it.
func (b Batch) Column(col string) []Value {
	out := make([]Value, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r[col]
	}
	return out
}

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	out := Batch{
		Columns: make([]string, len(b.Columns)),
		Rows:    make([]Record, len(b.Rows)),
	}
	copy(out.Columns, b.Columns)
	for i, r := range b.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// ColumnKind infers the kind of a column from its non-missing values:
// KindInt or KindFloat when every value is numeric, KindBool when every
// value is boolean, KindString otherwise. A column with no values at all
// is KindMissing.
func (b Batch) ColumnKind(col string) Kind {
	kind := KindMissing
	for _, r := range b.Rows {
		v := r[col]
		switch v.Kind() {
		case KindMissing:
			continue
		case KindInt:
			if kind == KindMissing {
				kind = KindInt
			} else if kind != KindInt && kind != KindFloat {
				return KindString
			}
		case KindFloat:
			if kind == KindMissing || kind == KindInt || kind == KindFloat {
				kind = KindFloat
			} else {
				return KindString
			}
		case KindBool:
			if kind == KindMissing {
				kind = KindBool
			} else if kind != KindBool {
				return KindString
			}
		default:
			return KindString
		}
	}
	return kind
}

// Distinct returns the sorted distinct categorical forms of the non-missing
// values of a column.
func (b Batch) Distinct(col string) []string {
	seen := make(map[string]struct{})
	for _, r := range b.Rows {
		v := r[col]
		if v.IsMissing() {
			continue
		}
		seen[v.String()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
