package schema

import "sort"

// Vector is an aligned feature vector in schema order.
type Vector []float64

// Align reindexes an encoded record to the schema. The result always has
// s.Len() entries: schema columns absent from the row are 0 and row
// columns absent from the schema are dropped.
func Align(row map[string]float64, s *Schema) Vector {
	v := make(Vector, len(s.columns))
	for i, c := range s.columns {
		v[i] = row[c]
	}
	return v
}

// Drift describes how an encoded record differs from the schema.
type Drift struct {
	// Missing lists schema columns the row did not set.
	Missing []string
	// Extra lists row columns the schema does not know.
	Extra []string
}

// Empty reports whether the row matched the schema exactly.
func (d Drift) Empty() bool { return len(d.Missing) == 0 && len(d.Extra) == 0 }

// Diff compares a row with the schema. Both lists are sorted.
func Diff(row map[string]float64, s *Schema) Drift {
	var d Drift
	for _, c := range s.columns {
		if _, ok := row[c]; !ok {
			d.Missing = append(d.Missing, c)
		}
	}
	for c := range row {
		if _, ok := s.index[c]; !ok {
			d.Extra = append(d.Extra, c)
		}
	}
	sort.Strings(d.Missing)
	sort.Strings(d.Extra)
	return d
}
