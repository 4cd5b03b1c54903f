package features

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// BinaryRule maps the two values of a two-valued categorical column to 0
// and 1. Values outside the pair, and missing values, map to 0.
type BinaryRule struct {
	Zero string `json:"zero"`
	One  string `json:"one"`
}

// Fixed semantic rules. They are hardcoded so training and serving agree
// even when one side never observes a value.
var (
	YesNo      = BinaryRule{Zero: "No", One: "Yes"}
	MaleFemale = BinaryRule{Zero: "Female", One: "Male"}
)

// RuleFor returns the binary rule for a column's observed values. Tiers are
// checked in order: {"Yes","No"}, {"Male","Female"}, then the two values
// sorted lexicographically with the smaller mapped to 0. It reports false
// unless there are exactly two distinct values.
func RuleFor(values []string) (BinaryRule, bool) {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	if len(set) != 2 {
		return BinaryRule{}, false
	}

	distinct := make([]string, 0, 2)
	for v := range set {
		distinct = append(distinct, v)
	}
	sort.Strings(distinct)

	switch {
	case distinct[0] == YesNo.Zero && distinct[1] == YesNo.One:
		return YesNo, true
	case distinct[0] == MaleFemale.Zero && distinct[1] == MaleFemale.One:
		return MaleFemale, true
	default:
		return BinaryRule{Zero: distinct[0], One: distinct[1]}, true
	}
}

// Map returns the code of a value and whether the value belongs to the rule.
func (r BinaryRule) Map(v string) (float64, bool) {
	switch v {
	case r.One:
		return 1, true
	case r.Zero:
		return 0, true
	default:
		return 0, false
	}
}

// Encode maps a cell. Missing and unmapped values resolve to 0 so the
// encoded output never carries missing values.
func (r BinaryRule) Encode(v core.Value) float64 {
	if v.IsMissing() {
		return 0
	}
	if code, ok := r.Map(v.String()); ok {
		return code
	}
	code, _ := r.Map(strings.TrimSpace(v.String()))
	return code
}

// DefaultBinaryFields returns the fixed binary request fields of the churn
// serving path and their rules.
func DefaultBinaryFields() map[string]BinaryRule {
	return map[string]BinaryRule{
		"gender":           MaleFemale,
		"Partner":          YesNo,
		"Dependents":       YesNo,
		"PhoneService":     YesNo,
		"PaperlessBilling": YesNo,
	}
}
