package features

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// Row is one encoded record: feature name to value. Its column set depends
// on the record and must be aligned to a schema before scoring.
type Row map[string]float64

// Columns returns the row's column names, sorted.
func (r Row) Columns() []string {
	out := make([]string, 0, len(r))
	for c := range r {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// EncodeRecord encodes a single serving record.
//
// Fixed binary fields go through their rule with unmapped values as 0.
// Numbers pass through and booleans become 0/1. Every other categorical
// value v of field f sets the indicator "f_v" to 1 without dropping a
// baseline: the schema never contains the baseline indicator, so alignment
// removes it. Missing values emit nothing and align to 0.
func (e *Encoder) EncodeRecord(r core.Record) Row {
	row := make(Row, len(r))
	for field, v := range r {
		name := strings.TrimSpace(field)
		if rule, ok := e.binaryFields[name]; ok {
			row[name] = rule.Encode(v)
			continue
		}
		switch v.Kind() {
		case core.KindMissing:
			continue
		case core.KindInt, core.KindFloat:
			n, _ := v.Number()
			row[name] = n
		case core.KindBool:
			if t, _ := v.Truth(); t {
				row[name] = 1
			} else {
				row[name] = 0
			}
		default:
			row[IndicatorName(name, v.String())] = 1
		}
	}
	return row
}
