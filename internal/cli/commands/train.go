package commands

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/churnline/internal/cli/config"
	"github.com/leapstack-labs/churnline/internal/engine"
	"github.com/leapstack-labs/churnline/internal/model"
)

// NewTrainCommand creates the train command.
func NewTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the churn model and write the artifacts",
		Long: `Load the raw customer dataset, validate it, clean and encode it, fit the
gradient-boosted classifier and write model.json and feature_columns.txt
into the artifact directory.

Runs, parameters and metrics are recorded in the tracking database unless
--state is set to an empty string.`,
		Example: `  # Train with the defaults from churnline.yaml
  churnline train

  # Train on another dataset with fewer rounds
  churnline train --data data/customers.csv --estimators 100

  # Stop when the dataset fails validation
  churnline train --fail-on-validation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd)
		},
	}

	addTrainingFlags(cmd)
	cmd.Flags().Float64("test-ratio", config.DefaultTestRatio, "Fraction of rows held out for evaluation")
	cmd.Flags().Int("estimators", model.DefaultConfig().Estimators, "Number of boosting rounds")
	cmd.Flags().Float64("learning-rate", model.DefaultConfig().LearningRate, "Shrinkage applied to each tree")
	cmd.Flags().Int("max-depth", model.DefaultConfig().MaxDepth, "Maximum tree depth")
	cmd.Flags().Int64("seed", model.DefaultConfig().Seed, "Random seed for the split and subsampling")

	return cmd
}

// addTrainingFlags adds the validation flags shared by train, prepare and validate.
func addTrainingFlags(cmd *cobra.Command) {
	cmd.Flags().String("validation", "schema", `Rule set: "schema", "expectations", a YAML rule file, or "none"`)
	cmd.Flags().Bool("fail-on-validation", false, "Fail when the dataset violates a rule")
}

type trainOutput struct {
	RunID       string             `json:"run_id,omitempty"`
	Status      string             `json:"status,omitempty"`
	Features    int                `json:"features"`
	TrainRows   int                `json:"train_rows"`
	TestRows    int                `json:"test_rows"`
	Metrics     map[string]float64 `json:"metrics"`
	ModelPath   string             `json:"model_path"`
	SchemaPath  string             `json:"schema_path"`
	DurationMS  int64              `json:"duration_ms"`
	Warnings    []string           `json:"validation_warnings,omitempty"`
	Violations  []string           `json:"validation_violations,omitempty"`
	BinaryDrift []string           `json:"binary_mismatch,omitempty"`
	SchemaDrift bool               `json:"schema_changed,omitempty"`
}

func runTrain(cmd *cobra.Command) error {
	eng, err := createEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	res, err := eng.Train(cmd.Context())
	if err != nil {
		if res != nil && res.Run != nil {
			return fmt.Errorf("training run %s failed: %w", res.Run.ID, err)
		}
		return fmt.Errorf("training failed: %w", err)
	}

	out := newTrainOutput(eng, res)
	r := getRenderer(cmd)
	rows := [][]string{
		{"features", strconv.Itoa(out.Features)},
		{"train rows", strconv.Itoa(out.TrainRows)},
		{"test rows", strconv.Itoa(out.TestRows)},
	}
	for _, k := range slices.Sorted(maps.Keys(out.Metrics)) {
		rows = append(rows, []string{k, formatFloat(out.Metrics[k])})
	}
	if out.RunID != "" {
		r.Printf("Run %s: %s\n", out.RunID, out.Status)
	}
	if err := r.Table([]string{"metric", "value"}, rows, out); err != nil {
		return err
	}
	r.Printf("Wrote %s and %s in %s\n", out.ModelPath, out.SchemaPath, res.Duration.Round(time.Millisecond))
	if out.SchemaDrift {
		r.Printf("Feature columns changed since the last run; restart running servers\n")
	}
	return nil
}

func newTrainOutput(eng *engine.Engine, res *engine.TrainResult) trainOutput {
	out := trainOutput{
		Features:    res.Features,
		TrainRows:   res.TrainRows,
		TestRows:    res.TestRows,
		Metrics:     res.Metrics.Map(),
		ModelPath:   eng.ModelPath(),
		SchemaPath:  eng.SchemaPath(),
		DurationMS:  res.Duration.Milliseconds(),
		SchemaDrift: res.SchemaChanged,
	}
	if res.Run != nil {
		out.RunID = res.Run.ID
		out.Status = string(res.Run.Status)
	}
	if p := res.Prepared; p != nil {
		out.Warnings = p.Validation.Warnings
		out.Violations = p.Validation.Violations
		out.BinaryDrift = p.Mismatch
	}
	return out
}
