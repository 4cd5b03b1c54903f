package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List tracked training runs",
		Example: `  churnline runs
  churnline runs --limit 5 -o json
  churnline runs show <run-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of runs to list")

	cmd.AddCommand(newRunsShowCommand())
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the parameters and metrics of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd, args[0])
		},
	}
}

type runOutput struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Dataset     string             `json:"dataset"`
	ArtifactDir string             `json:"artifact_dir"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Error       string             `json:"error,omitempty"`
	Params      map[string]string  `json:"params,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

func newRunOutput(r *core.Run) runOutput {
	return runOutput{
		ID:          r.ID,
		Status:      string(r.Status),
		Dataset:     r.Dataset,
		ArtifactDir: r.ArtifactDir,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

func runDuration(r *core.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	r := getRenderer(cmd)
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		r.Printf("No runs tracked yet\n")
		if r.json() {
			return renderJSON(r.w, []runOutput{})
		}
		return nil
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]runOutput, 0, len(runs))
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		ro := newRunOutput(run)
		metrics, err := store.GetMetrics(run.ID)
		if err != nil {
			return fmt.Errorf("failed to read metrics of run %s: %w", run.ID, err)
		}
		ro.Metrics = metricMap(metrics)
		out = append(out, ro)

		acc := "-"
		if v, ok := ro.Metrics["accuracy"]; ok {
			acc = formatFloat(v)
		}
		rows = append(rows, []string{
			run.ID,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
			acc,
		})
	}
	return r.Table([]string{"id", "status", "started", "duration", "accuracy"}, rows, out)
}

func runRunsShow(cmd *cobra.Command, id string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("run not found: %s", id)
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(id)
	if err != nil {
		return err
	}
	params, err := store.GetParams(id)
	if err != nil {
		return fmt.Errorf("failed to read params: %w", err)
	}
	metrics, err := store.GetMetrics(id)
	if err != nil {
		return fmt.Errorf("failed to read metrics: %w", err)
	}

	out := newRunOutput(run)
	out.Params = make(map[string]string, len(params))
	for _, p := range params {
		out.Params[p.Key] = p.Value
	}
	out.Metrics = metricMap(metrics)

	r := getRenderer(cmd)
	r.Printf("Run %s: %s (%s)\n", run.ID, run.Status, runDuration(run))
	if run.Error != "" {
		r.Printf("Error: %s\n", run.Error)
	}
	rows := make([][]string, 0, len(params)+len(metrics))
	for _, p := range params {
		rows = append(rows, []string{"param", p.Key, p.Value})
	}
	for _, m := range metrics {
		rows = append(rows, []string{"metric", m.Key, formatFloat(m.Value)})
	}
	return r.Table([]string{"kind", "key", "value"}, rows, out)
}

func metricMap(ms []core.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Key] = m.Value
	}
	return out
}
