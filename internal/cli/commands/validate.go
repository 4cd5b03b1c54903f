package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/churnline/internal/validate"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the raw dataset against a data-quality rule set",
		Long: `Run a rule set against the raw dataset and list the violated rules.

Validation is informational: the command succeeds even when rules fail,
unless --fail-on-validation is set.`,
		Example: `  churnline validate
  churnline validate --validation expectations
  churnline validate --validation rules.yaml --fail-on-validation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd)
		},
	}

	addTrainingFlags(cmd)
	return cmd
}

func runValidate(cmd *cobra.Command) error {
	eng, err := createEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	res, err := eng.Validate()
	if err != nil {
		return err
	}
	if err := renderValidation(getRenderer(cmd), res); err != nil {
		return err
	}
	if getConfig(cmd).Training.FailOnValidation {
		return res.Err()
	}
	return nil
}

func renderValidation(r *renderer, res validate.Result) error {
	var rows [][]string
	for _, v := range res.Violations {
		rows = append(rows, []string{"violation", v})
	}
	for _, w := range res.Warnings {
		rows = append(rows, []string{"warning", w})
	}
	if res.Passed {
		r.Printf("Validation passed\n")
	} else {
		r.Printf("Validation failed: %d violated rules\n", len(res.Violations))
	}
	if len(rows) == 0 && !r.json() {
		return nil
	}
	return r.Table([]string{"severity", "rule"}, rows, res)
}
