package commands

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// PrepareOptions holds options for the prepare command.
type PrepareOptions struct {
	Out string
}

// NewPrepareCommand creates the prepare command.
func NewPrepareCommand() *cobra.Command {
	opts := &PrepareOptions{}

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Clean and encode the dataset without training",
		Long: `Run the cleaning and encoding steps of the training pipeline and write the
processed table, encoded features followed by the label column, as CSV.`,
		Example: `  churnline prepare --out data/processed.csv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrepare(cmd, opts)
		},
	}

	addTrainingFlags(cmd)
	cmd.Flags().StringVar(&opts.Out, "out", "data/processed.csv", "Path of the processed CSV")

	return cmd
}

type prepareOutput struct {
	Path           string            `json:"path"`
	Rows           int               `json:"rows"`
	Columns        []string          `json:"columns"`
	BinaryColumns  []string          `json:"binary_columns"`
	BinaryMismatch []string          `json:"binary_mismatch,omitempty"`
	Baselines      map[string]string `json:"baselines"`
	Passed         bool              `json:"validation_passed"`
}

func runPrepare(cmd *cobra.Command, opts *PrepareOptions) error {
	eng, err := createEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	p, err := eng.Prepare(cmd.Context(), opts.Out)
	if err != nil {
		return fmt.Errorf("prepare failed: %w", err)
	}

	out := prepareOutput{
		Path:           opts.Out,
		Rows:           p.Frame.Len(),
		Columns:        p.Frame.Columns,
		BinaryColumns:  p.Frame.BinaryColumns(),
		BinaryMismatch: p.Mismatch,
		Baselines:      p.Frame.Baselines,
		Passed:         p.Validation.Passed,
	}
	rows := [][]string{
		{"path", out.Path},
		{"rows", strconv.Itoa(out.Rows)},
		{"features", strconv.Itoa(len(out.Columns))},
		{"binary columns", strings.Join(out.BinaryColumns, ", ")},
		{"baselines", formatBaselines(out.Baselines)},
		{"validation passed", strconv.FormatBool(out.Passed)},
	}
	if len(out.BinaryMismatch) > 0 {
		rows = append(rows, []string{"binary mismatch", strings.Join(out.BinaryMismatch, ", ")})
	}
	return getRenderer(cmd).Table([]string{"field", "value"}, rows, out)
}

// formatBaselines lists the dropped category per indicator column.
func formatBaselines(b map[string]string) string {
	parts := make([]string, 0, len(b))
	for _, col := range slices.Sorted(maps.Keys(b)) {
		parts = append(parts, col+"="+b[col])
	}
	return strings.Join(parts, ", ")
}
