// Package serving scores single customer records with a trained model.
//
// A Predictor is built once at startup from the artifact directory and is
// safe for concurrent use: it holds only read-only state.
package serving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/churnline/internal/features"
	"github.com/leapstack-labs/churnline/internal/model"
	"github.com/leapstack-labs/churnline/internal/schema"
	"github.com/leapstack-labs/churnline/pkg/core"
)

// Prediction labels.
const (
	LabelChurn    = "Likely to churn"
	LabelNoChurn  = "Not likely to churn"
	positiveClass = 1
)

// NumericFields are coerced to numbers before encoding; values that do not
// parse become 0.
var NumericFields = []string{"tenure", "MonthlyCharges", "TotalCharges", "SeniorCitizen"}

// Prediction is the outcome of scoring one record.
type Prediction struct {
	Label       string  `json:"prediction"`
	Class       int     `json:"class"`
	Probability float64 `json:"probability"`
}

// Predictor turns raw request fields into a churn label.
type Predictor struct {
	model     model.Classifier
	schema    *schema.Schema
	encoder   *features.Encoder
	threshold float64
	logger    *slog.Logger
	err       error
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithThreshold sets the positive-class probability threshold.
func WithThreshold(t float64) Option {
	return func(p *Predictor) { p.threshold = t }
}

// WithEncoder replaces the default record encoder.
func WithEncoder(e *features.Encoder) Option {
	return func(p *Predictor) { p.encoder = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Predictor) { p.logger = l }
}

// NewPredictor creates a predictor from a loaded model and feature schema.
func NewPredictor(m model.Classifier, s *schema.Schema, opts ...Option) (*Predictor, error) {
	if m == nil || s == nil {
		return nil, errors.New("predictor requires a model and a feature schema")
	}
	if n := m.NumFeatures(); n != s.Len() {
		return nil, fmt.Errorf("%w: model expects %d features, schema lists %d", core.ErrSchema, n, s.Len())
	}
	p := &Predictor{
		model:     m,
		schema:    s,
		encoder:   features.NewEncoder(),
		threshold: model.DefaultThreshold,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Unavailable returns a predictor whose every call fails with a
// *core.ModelUnavailableError carrying err.
func Unavailable(err error) *Predictor {
	return &Predictor{err: err, logger: slog.New(slog.DiscardHandler)}
}

// Load reads model.json and feature_columns.txt from dir. Any failure
// yields an error; callers that must keep serving fall back to
// Unavailable.
func Load(dir string, logger *slog.Logger, opts ...Option) (*Predictor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m, err := model.Load(filepath.Join(dir, model.FileName))
	if err != nil {
		return nil, err
	}
	s, err := schema.Load(filepath.Join(dir, schema.FileName))
	if err != nil {
		return nil, err
	}
	p, err := NewPredictor(m, s, append([]Option{WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded model", "dir", dir, "features", s.Len(), "trees", len(m.Trees))
	return p, nil
}

// LoadOrUnavailable is Load that never fails: load errors are logged and
// produce an Unavailable predictor.
func LoadOrUnavailable(dir string, logger *slog.Logger, opts ...Option) *Predictor {
	p, err := Load(dir, logger, opts...)
	if err != nil {
		if logger != nil {
			logger.Error("failed to load model, predictions disabled", "dir", dir, "error", err)
		}
		return Unavailable(err)
	}
	return p
}

// Ready reports whether the predictor can score.
func (p *Predictor) Ready() bool { return p.err == nil }

// Err returns the load error of an unavailable predictor.
func (p *Predictor) Err() error { return p.err }

// Schema returns the feature schema, nil when unavailable.
func (p *Predictor) Schema() *schema.Schema { return p.schema }

// Predict scores one record of raw request fields.
func (p *Predictor) Predict(ctx context.Context, fields map[string]any) (Prediction, error) {
	if p.err != nil {
		return Prediction{}, &core.ModelUnavailableError{Err: p.err}
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	rec, err := Coerce(fields)
	if err != nil {
		return Prediction{}, err
	}

	row := p.encoder.EncodeRecord(rec)
	if p.logger.Enabled(ctx, slog.LevelDebug) {
		if d := schema.Diff(row, p.schema); !d.Empty() {
			p.logger.DebugContext(ctx, "aligning record", "missing", len(d.Missing), "extra", d.Extra)
		}
	}
	vec := schema.Align(row, p.schema)

	prob := p.model.PredictProba(vec)
	class := model.Classify(prob, p.threshold)
	return Prediction{Label: Label(class), Class: class, Probability: prob}, nil
}

// Label maps a class to its display label.
func Label(class int) string {
	if class == positiveClass {
		return LabelChurn
	}
	return LabelNoChurn
}

// Coerce converts raw request fields into a record. Field names are
// trimmed. Nested values are rejected. NumericFields that are present are
// parsed as numbers, with 0 for values that do not parse.
func Coerce(fields map[string]any) (core.Record, error) {
	rec := make(core.Record, len(fields))
	for k, raw := range fields {
		name := strings.TrimSpace(k)
		v, err := core.ValueOf(raw)
		if err != nil {
			return nil, &core.InvalidInputError{Field: name, Reason: err.Error()}
		}
		rec[name] = v
	}
	for _, f := range NumericFields {
		v, ok := rec[f]
		if !ok {
			continue
		}
		n, ok := v.ToFloat()
		if !ok {
			n = 0
		}
		rec[f] = core.Float(n)
	}
	return rec, nil
}
