package commands

import (
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/churnline/internal/features"
	"github.com/leapstack-labs/churnline/internal/schema"
	"github.com/leapstack-labs/churnline/internal/serving"
)

// SchemaOptions holds options for the schema command.
type SchemaOptions struct {
	Check   string
	Example int
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	opts := &SchemaOptions{Example: -1}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the persisted feature schema",
		Long: `List the feature columns, in order, that the trained model expects.

With --check, encode a request and report the schema columns it does not
produce and the columns it produces that the schema does not know. Both
are filled or dropped silently at serving time.`,
		Example: `  churnline schema
  churnline schema --check customer.json
  churnline schema --example 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchema(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Check, "check", "", `JSON request to compare against the schema, or "-" for stdin`)
	cmd.Flags().IntVar(&opts.Example, "example", -1, "Compare a built-in example customer against the schema")

	return cmd
}

type driftOutput struct {
	Missing []string `json:"missing"`
	Extra   []string `json:"extra"`
}

func runSchema(cmd *cobra.Command, opts *SchemaOptions) error {
	s, err := schema.Load(filepath.Join(getConfig(cmd).ArtifactDir, schema.FileName))
	if err != nil {
		return err
	}
	r := getRenderer(cmd)

	if opts.Check == "" && opts.Example < 0 {
		cols := s.Columns()
		rows := make([][]string, len(cols))
		for i, c := range cols {
			rows[i] = []string{strconv.Itoa(i), c}
		}
		return r.Table([]string{"#", "column"}, rows, cols)
	}

	fields, err := requestFields(cmd.InOrStdin(), &PredictOptions{File: opts.Check, Example: opts.Example})
	if err != nil {
		return err
	}
	rec, err := serving.Coerce(fields)
	if err != nil {
		return err
	}
	d := schema.Diff(features.NewEncoder().EncodeRecord(rec), s)

	if d.Empty() {
		r.Printf("Request matches the schema\n")
	}
	var rows [][]string
	for _, c := range d.Missing {
		rows = append(rows, []string{"missing (zero)", c})
	}
	for _, c := range d.Extra {
		rows = append(rows, []string{"extra (dropped)", c})
	}
	if len(rows) == 0 && !r.json() {
		return nil
	}
	return r.Table([]string{"kind", "column"}, rows, driftOutput{Missing: d.Missing, Extra: d.Extra})
}
