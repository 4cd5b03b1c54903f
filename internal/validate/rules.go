package validate

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Built-in rule set names.
const (
	SchemaRules       = "schema"
	ExpectationsRules = "expectations"
)

func ptr(f float64) *float64 { return &f }

// telcoRules are the column checks shared by both built-in sets.
func telcoRules() []Rule {
	yesNo := []string{"Yes", "No"}
	return []Rule{
		{Column: "customerID", Check: CheckNotNull},
		{Column: "gender", Check: CheckInSet, Values: []string{"Male", "Female"}},
		{Column: "Partner", Check: CheckInSet, Values: yesNo},
		{Column: "Dependents", Check: CheckInSet, Values: yesNo},
		{Column: "PhoneService", Check: CheckInSet, Values: yesNo},
		{Column: "InternetService", Check: CheckInSet, Values: []string{"DSL", "Fiber optic", "No"}},
		{Column: "Contract", Check: CheckInSet, Values: []string{"Month-to-month", "One year", "Two year"}},
		{Column: "tenure", Check: CheckNotNull},
		{Column: "tenure", Check: CheckBetween, Min: ptr(0), Max: ptr(120)},
		{Column: "MonthlyCharges", Check: CheckNotNull},
		{Column: "MonthlyCharges", Check: CheckBetween, Min: ptr(0), Max: ptr(200)},
		{Column: "TotalCharges", Check: CheckNotNull},
		{Column: "Churn", Check: CheckInSet, Values: yesNo},
	}
}

// Schema returns the lightweight rule set. The TotalCharges >= MonthlyCharges
// check only warns.
func Schema() *RuleSet {
	rules := append(telcoRules(), Rule{
		Column: "TotalCharges", Check: CheckGEColumn, Other: "MonthlyCharges", Warn: true,
	})
	return &RuleSet{Name: SchemaRules, Rules: rules}
}

// Expectations returns the rule-engine set. TotalCharges >= MonthlyCharges
// is enforced for 95% of comparable rows.
func Expectations() *RuleSet {
	rules := append(telcoRules(), Rule{
		Column: "TotalCharges", Check: CheckGEColumn, Other: "MonthlyCharges", Mostly: 0.95,
	})
	return &RuleSet{Name: ExpectationsRules, Rules: rules}
}

// ParseRules decodes a YAML rule set.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("rule set %q has no rules", rs.Name)
	}
	for i, r := range rs.Rules {
		if err := r.check(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return &rs, nil
}

// LoadRules reads a YAML rule file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rs.Name == "" {
		rs.Name = path
	}
	return rs, nil
}

// Resolve returns a built-in rule set by name, or loads a YAML rule file
// when name is not a built-in.
func Resolve(name string) (*RuleSet, error) {
	switch name {
	case "", SchemaRules:
		return Schema(), nil
	case ExpectationsRules:
		return Expectations(), nil
	default:
		return LoadRules(name)
	}
}
