// Package validate checks raw customer batches against data-quality rules.
//
// Validation is informational: a Result lists what failed and the caller
// decides whether to stop. Rule sets are interchangeable behind Validator.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// Validator checks a batch.
type Validator interface {
	Validate(b core.Batch) Result
}

// Result is the outcome of a validation run. Violations and Warnings are
// de-duplicated and sorted, each formatted "<column>: <check>".
type Result struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Err returns a *core.ValidationFailure when the result did not pass.
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	return &core.ValidationFailure{Violations: r.Violations}
}

// Check names a rule kind.
type Check string

const (
	CheckExists   Check = "exists"
	CheckNotNull  Check = "not_null"
	CheckInSet    Check = "in_set"
	CheckBetween  Check = "between"
	CheckGEColumn Check = "ge_column"
)

// Rule is one column check. Mostly is the minimum fraction of evaluated
// rows that must pass; zero means all of them. Warn demotes a failure to
// a warning.
type Rule struct {
	Column string   `yaml:"column"`
	Check  Check    `yaml:"check"`
	Values []string `yaml:"values,omitempty"`
	Min    *float64 `yaml:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty"`
	Other  string   `yaml:"other,omitempty"`
	Mostly float64  `yaml:"mostly,omitempty"`
	Warn   bool     `yaml:"warn,omitempty"`
}

func (r Rule) label() string {
	return fmt.Sprintf("%s: %s", r.Column, r.Check)
}

func (r Rule) check() error {
	if strings.TrimSpace(r.Column) == "" {
		return fmt.Errorf("rule has no column")
	}
	if r.Mostly < 0 || r.Mostly > 1 {
		return fmt.Errorf("%s: mostly must be in [0, 1]", r.label())
	}
	switch r.Check {
	case CheckExists, CheckNotNull:
	case CheckInSet:
		if len(r.Values) == 0 {
			return fmt.Errorf("%s: values required", r.label())
		}
	case CheckBetween:
		if r.Min == nil && r.Max == nil {
			return fmt.Errorf("%s: min or max required", r.label())
		}
	case CheckGEColumn:
		if r.Other == "" {
			return fmt.Errorf("%s: other column required", r.label())
		}
	default:
		return fmt.Errorf("%s: unknown check", r.label())
	}
	return nil
}

// RuleSet is an ordered list of rules evaluated together.
type RuleSet struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// Validate evaluates every rule. A column a rule refers to that is absent
// from the batch is reported once as "<column>: exists".
func (s *RuleSet) Validate(b core.Batch) Result {
	violations := make(map[string]struct{})
	warnings := make(map[string]struct{})

	for _, r := range s.Rules {
		if !b.Has(r.Column) {
			violations[fmt.Sprintf("%s: %s", r.Column, CheckExists)] = struct{}{}
			continue
		}
		if r.Check == CheckGEColumn && !b.Has(r.Other) {
			violations[fmt.Sprintf("%s: %s", r.Other, CheckExists)] = struct{}{}
			continue
		}
		if evaluate(r, b) {
			continue
		}
		if r.Warn {
			warnings[r.label()] = struct{}{}
		} else {
			violations[r.label()] = struct{}{}
		}
	}

	res := Result{
		Violations: sortedKeys(violations),
		Warnings:   sortedKeys(warnings),
	}
	res.Passed = len(res.Violations) == 0
	return res
}

// evaluate reports whether enough rows satisfy the rule.
func evaluate(r Rule, b core.Batch) bool {
	var passed, total int
	tally := func(ok bool) {
		total++
		if ok {
			passed++
		}
	}

	switch r.Check {
	case CheckExists:
		return true
	case CheckNotNull:
		for _, row := range b.Rows {
			tally(!row[r.Column].IsMissing())
		}
	case CheckInSet:
		allowed := make(map[string]struct{}, len(r.Values))
		for _, v := range r.Values {
			allowed[v] = struct{}{}
		}
		for _, row := range b.Rows {
			v := row[r.Column]
			if v.IsMissing() {
				continue
			}
			_, ok := allowed[v.String()]
			tally(ok)
		}
	case CheckBetween:
		for _, row := range b.Rows {
			v := row[r.Column]
			if v.IsMissing() {
				continue
			}
			n, ok := v.ToFloat()
			tally(ok && (r.Min == nil || n >= *r.Min) && (r.Max == nil || n <= *r.Max))
		}
	case CheckGEColumn:
		for _, row := range b.Rows {
			a, okA := row[r.Column].ToFloat()
			o, okO := row[r.Other].ToFloat()
			if !okA || !okO {
				continue
			}
			tally(a >= o)
		}
	}

	if total == 0 {
		return true
	}
	mostly := r.Mostly
	if mostly == 0 {
		mostly = 1
	}
	return float64(passed)/float64(total) >= mostly
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
