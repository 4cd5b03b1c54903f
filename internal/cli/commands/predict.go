package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/churnline/internal/cli/config"
	"github.com/leapstack-labs/churnline/internal/serving"
)

// PredictOptions holds options for the predict command.
type PredictOptions struct {
	File    string
	Set     map[string]string
	Example int
}

// NewPredictCommand creates the predict command.
func NewPredictCommand() *cobra.Command {
	opts := &PredictOptions{Example: -1}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one customer with the trained model",
		Long: `Load the artifacts and score one customer record.

Fields come from a JSON object (--file, "-" for stdin), a built-in example
(--example) and individual --set key=value pairs, applied in that order.`,
		Example: `  churnline predict --example 0
  churnline predict --file customer.json
  echo '{"Contract": "Two year", "tenure": 60}' | churnline predict --file -
  churnline predict --example 0 --set Contract="Two year"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", `JSON request file, or "-" for stdin`)
	cmd.Flags().StringToStringVar(&opts.Set, "set", nil, "Field values as key=value")
	cmd.Flags().IntVar(&opts.Example, "example", -1, "Index of a built-in example customer")
	cmd.Flags().Float64("threshold", config.DefaultThreshold, "Positive-class probability threshold")

	return cmd
}

func runPredict(cmd *cobra.Command, opts *PredictOptions) error {
	fields, err := requestFields(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}

	cfg := getConfig(cmd)
	p, err := serving.Load(cfg.ArtifactDir, getLogger(cmd), serving.WithThreshold(cfg.Serve.Threshold))
	if err != nil {
		return err
	}

	pred, err := p.Predict(cmd.Context(), fields)
	if err != nil {
		return err
	}

	return getRenderer(cmd).Table(
		[]string{"prediction", "probability"},
		[][]string{{pred.Label, strconv.FormatFloat(pred.Probability, 'f', 4, 64)}},
		pred,
	)
}

// requestFields assembles the request from the file, example and --set flags.
func requestFields(stdin io.Reader, opts *PredictOptions) (map[string]any, error) {
	fields := map[string]any{}

	if opts.File != "" {
		var r io.Reader = stdin
		if opts.File != "-" {
			f, err := os.Open(opts.File)
			if err != nil {
				return nil, fmt.Errorf("failed to open request: %w", err)
			}
			defer func() { _ = f.Close() }()
			r = f
		}
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
	}

	if opts.Example >= 0 {
		examples := serving.Examples()
		if opts.Example >= len(examples) {
			return nil, fmt.Errorf("unknown example %d (have %d)", opts.Example, len(examples))
		}
		for k, v := range examples[opts.Example].Fields {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
	}

	for k, v := range opts.Set {
		fields[k] = v
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("no request fields: use --file, --example or --set")
	}
	return fields, nil
}
