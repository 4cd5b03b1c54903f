package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/leapstack-labs/churnline/internal/features"
	"github.com/leapstack-labs/churnline/internal/loader"
	"github.com/leapstack-labs/churnline/internal/model"
	"github.com/leapstack-labs/churnline/internal/schema"
	"github.com/leapstack-labs/churnline/internal/validate"
	"github.com/leapstack-labs/churnline/pkg/core"
)

// Prepared is a cleaned and encoded dataset.
type Prepared struct {
	Frame      *features.Frame
	Validation validate.Result
	// Mismatch lists binary columns that disagree with the serving fields.
	Mismatch []string
}

// TrainResult summarises a training run.
type TrainResult struct {
	// Run is the tracked run, nil when tracking is disabled.
	Run       *core.Run
	Metrics   model.Metrics
	Features  int
	TrainRows int
	TestRows  int
	Duration  time.Duration
	Prepared  *Prepared
	// SchemaChanged is set when an earlier schema in the artifact dir had
	// different columns. Running servers keep the old one until restarted.
	SchemaChanged bool
}

func (e *Engine) load() (core.Batch, error) {
	if e.cfg.DataPath == "" {
		return core.Batch{}, errors.New("no dataset configured")
	}
	e.logger.Debug("loading dataset", "path", e.cfg.DataPath)
	b, err := loader.LoadCSV(e.cfg.DataPath)
	if err != nil {
		return core.Batch{}, err
	}
	e.logger.Info("loaded dataset", "rows", b.Len(), "columns", len(b.Columns))
	return b, nil
}

// prepare runs load, validate, clean and encode.
func (e *Engine) prepare(ctx context.Context) (*Prepared, error) {
	raw, err := e.load()
	if err != nil {
		return nil, err
	}

	p := &Prepared{Validation: validate.Result{Passed: true}}
	if e.validator != nil {
		p.Validation = e.validator.Validate(raw)
		for _, w := range p.Validation.Warnings {
			e.logger.Warn("validation warning", "check", w)
		}
		if !p.Validation.Passed {
			e.logger.Warn("validation failed", "issues", len(p.Validation.Violations), "violations", p.Validation.Violations)
			if e.cfg.FailOnValidation {
				return p, p.Validation.Err()
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return p, err
	}

	cleaned, err := e.cleaner.Clean(raw)
	if err != nil {
		return p, fmt.Errorf("failed to clean dataset: %w", err)
	}
	frame, err := e.encoder.EncodeBatch(cleaned, e.cfg.Cleaner.TargetColumn)
	if err != nil {
		return p, fmt.Errorf("failed to encode dataset: %w", err)
	}
	p.Frame = frame

	p.Mismatch = BinaryMismatch(frame.Binary, e.encoder.BinaryFields())
	for _, col := range p.Mismatch {
		e.logger.Warn("binary encoding differs between training and serving", "column", col)
	}
	return p, nil
}

// Prepare cleans and encodes the dataset. When out is set the processed
// table, features plus label, is written there as CSV.
func (e *Engine) Prepare(ctx context.Context, out string) (*Prepared, error) {
	p, err := e.prepare(ctx)
	if err != nil {
		return p, err
	}
	if out != "" {
		header, rows := p.Frame.WithLabels()
		if err := loader.WriteCSV(out, header, rows); err != nil {
			return p, fmt.Errorf("failed to write processed dataset: %w", err)
		}
		e.logger.Info("wrote processed dataset", "path", out, "rows", p.Frame.Len(), "features", len(p.Frame.Columns))
	}
	return p, nil
}

// Train runs the full pipeline and writes the artifacts. When tracking is
// enabled the run, its parameters and its metrics are recorded and the run
// is completed as failed on any error.
func (e *Engine) Train(ctx context.Context) (res *TrainResult, err error) {
	start := time.Now()
	res = &TrainResult{}
	e.logger.Info("starting training", "data", e.cfg.DataPath, "artifact_dir", e.cfg.ArtifactDir)

	if e.store != nil {
		run, rerr := e.store.CreateRun(e.cfg.DataPath, e.cfg.ArtifactDir)
		if rerr != nil {
			return nil, fmt.Errorf("failed to create run: %w", rerr)
		}
		res.Run = run
		e.logger.Debug("created run", "run_id", run.ID)

		defer func() {
			status, msg := core.RunStatusCompleted, ""
			if err != nil {
				status, msg = core.RunStatusFailed, err.Error()
			}
			if cerr := e.store.CompleteRun(run.ID, status, msg); cerr != nil {
				e.logger.Error("failed to complete run", "run_id", run.ID, "error", cerr)
			}
			if got, gerr := e.store.GetRun(run.ID); gerr == nil {
				res.Run = got
			}
		}()

		if err := e.logParams(run.ID); err != nil {
			return res, err
		}
	}

	p, err := e.prepare(ctx)
	res.Prepared = p
	if err != nil {
		return res, err
	}
	frame := p.Frame

	s, err := schema.New(frame.Columns)
	if err != nil {
		return res, fmt.Errorf("failed to build feature schema: %w", err)
	}
	res.Features = s.Len()

	trainIdx, testIdx, err := model.TrainTestSplit(frame.Len(), e.cfg.TestRatio, e.cfg.Model.Seed)
	if err != nil {
		return res, err
	}
	res.TrainRows, res.TestRows = len(trainIdx), len(testIdx)
	if len(trainIdx) == 0 {
		return res, errors.New("no training rows")
	}

	X := frame.Dense()
	Xtr, ytr := subset(X, frame.Labels, trainIdx)
	e.logger.Info("fitting model",
		"rows", len(trainIdx),
		"features", s.Len(),
		"estimators", e.cfg.Model.Estimators,
	)
	m := model.NewGBDT(model.WithConfig(e.cfg.Model), model.WithLogger(e.logger))
	if err := m.Fit(Xtr, ytr); err != nil {
		return res, fmt.Errorf("failed to fit model: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	evalIdx := testIdx
	if len(evalIdx) == 0 {
		e.logger.Warn("no held-out rows, evaluating on the training set")
		evalIdx = trainIdx
	}
	Xte, yte := subset(X, frame.Labels, evalIdx)
	res.Metrics = model.Evaluate(yte, m.PredictProbaMatrix(Xte), model.DefaultThreshold)
	e.logger.Info("evaluated model",
		"accuracy", res.Metrics.Accuracy,
		"recall", res.Metrics.Recall,
		"precision", res.Metrics.Precision,
		"f1", res.Metrics.F1,
	)

	res.SchemaChanged = e.schemaChanged(s)
	if err := s.Save(e.SchemaPath()); err != nil {
		return res, err
	}
	if err := m.Save(e.ModelPath()); err != nil {
		return res, err
	}
	e.logger.Info("wrote artifacts", "model", e.ModelPath(), "schema", e.SchemaPath())

	if res.Run != nil {
		if err := e.logMetrics(res.Run.ID, res); err != nil {
			return res, err
		}
	}

	res.Duration = time.Since(start)
	e.logger.Info("training complete", "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// schemaChanged compares s with the schema left by a previous run.
func (e *Engine) schemaChanged(s *schema.Schema) bool {
	prev, err := schema.Load(e.SchemaPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("failed to read previous feature schema", "path", e.SchemaPath(), "error", err)
		}
		return false
	}
	if prev.Equal(s) {
		return false
	}
	e.logger.Warn("feature schema changed since the last run",
		"previous", prev.Len(),
		"current", s.Len(),
	)
	return true
}

func (e *Engine) logParams(runID string) error {
	c := e.cfg.Model
	params := map[string]string{
		"n_estimators":     strconv.Itoa(c.Estimators),
		"learning_rate":    strconv.FormatFloat(c.LearningRate, 'f', -1, 64),
		"max_depth":        strconv.Itoa(c.MaxDepth),
		"min_child_weight": strconv.FormatFloat(c.MinChildWeight, 'f', -1, 64),
		"reg_lambda":       strconv.FormatFloat(c.Lambda, 'f', -1, 64),
		"subsample":        strconv.FormatFloat(c.Subsample, 'f', -1, 64),
		"random_state":     strconv.FormatInt(c.Seed, 10),
		"test_ratio":       strconv.FormatFloat(e.cfg.TestRatio, 'f', -1, 64),
		"target":           e.cfg.Cleaner.TargetColumn,
	}
	for _, k := range sortedKeys(params) {
		if err := e.store.LogParam(runID, k, params[k]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) logMetrics(runID string, res *TrainResult) error {
	metrics := res.Metrics.Map()
	metrics["n_features"] = float64(res.Features)
	metrics["train_rows"] = float64(res.TrainRows)
	metrics["test_rows"] = float64(res.TestRows)
	for _, k := range sortedKeys(metrics) {
		if err := e.store.LogMetric(runID, k, metrics[k]); err != nil {
			return err
		}
	}
	return nil
}

// subset gathers rows of X and their labels.
func subset(X *mat.Dense, labels []float64, idx []int) (*mat.Dense, []float64) {
	y := make([]float64, len(idx))
	if len(idx) == 0 {
		return &mat.Dense{}, y
	}
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for k, i := range idx {
		out.SetRow(k, X.RawRowView(i))
		y[k] = labels[i]
	}
	return out, y
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		seen[s] = struct{}{}
	}
	return sortedKeys(seen)
}
