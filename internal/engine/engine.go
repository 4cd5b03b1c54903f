// Package engine runs the offline training pipeline: load raw customers,
// validate, clean, encode, fit the classifier and write the artifact
// directory that the serving path loads.
package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/churnline/internal/cleaner"
	"github.com/leapstack-labs/churnline/internal/features"
	"github.com/leapstack-labs/churnline/internal/model"
	"github.com/leapstack-labs/churnline/internal/schema"
	"github.com/leapstack-labs/churnline/internal/state"
	"github.com/leapstack-labs/churnline/internal/validate"
)

// ValidationNone disables the validation step.
const ValidationNone = "none"

// Config holds engine configuration.
type Config struct {
	// DataPath is the raw customer CSV.
	DataPath string
	// ArtifactDir receives model.json and feature_columns.txt.
	ArtifactDir string
	// StatePath is the SQLite tracking database; empty disables tracking.
	StatePath string
	// Validation names a built-in rule set, a YAML rule file, or "none".
	Validation string
	// FailOnValidation aborts training when validation does not pass.
	FailOnValidation bool
	// TestRatio is the held-out fraction; zero evaluates on the training rows.
	TestRatio float64
	// Cleaner configures the cleaning step.
	Cleaner cleaner.Options
	// Model holds the boosting hyperparameters.
	Model model.Config
	// BinaryFields are the serving binary fields checked against training.
	BinaryFields map[string]features.BinaryRule
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// DefaultConfig returns the churn training configuration.
func DefaultConfig() Config {
	return Config{
		ArtifactDir: "artifacts",
		Validation:  validate.SchemaRules,
		TestRatio:   0.2,
		Cleaner:     cleaner.DefaultOptions(),
		Model:       model.DefaultConfig(),
	}
}

// Engine orchestrates a training run.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	store     state.Store
	cleaner   *cleaner.Cleaner
	encoder   *features.Encoder
	validator validate.Validator
}

// New creates an engine. The tracking store is opened only when
// cfg.StatePath is set.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Cleaner.TargetColumn == "" {
		cfg.Cleaner = cleaner.DefaultOptions()
	}
	if cfg.Model.Estimators == 0 {
		cfg.Model = model.DefaultConfig()
	}
	if err := cfg.Model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	logger.Debug("initializing engine", "data", cfg.DataPath, "artifact_dir", cfg.ArtifactDir, "state", cfg.StatePath)

	encOpts := []features.Option{features.WithLogger(logger)}
	if cfg.BinaryFields != nil {
		encOpts = append(encOpts, features.WithBinaryFields(cfg.BinaryFields))
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		cleaner: cleaner.New(cfg.Cleaner, logger),
		encoder: features.NewEncoder(encOpts...),
	}

	if cfg.Validation != ValidationNone {
		v, err := validate.Resolve(cfg.Validation)
		if err != nil {
			return nil, fmt.Errorf("failed to load validation rules: %w", err)
		}
		e.validator = v
	}

	if cfg.StatePath != "" {
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := store.InitSchema(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		e.store = store
	}

	return e, nil
}

// Close releases the tracking store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Store returns the tracking store, or nil when tracking is disabled.
func (e *Engine) Store() state.Store {
	return e.store
}

// Encoder returns the feature encoder.
func (e *Engine) Encoder() *features.Encoder {
	return e.encoder
}

// ModelPath returns the model artifact path.
func (e *Engine) ModelPath() string {
	return filepath.Join(e.cfg.ArtifactDir, model.FileName)
}

// SchemaPath returns the feature schema artifact path.
func (e *Engine) SchemaPath() string {
	return filepath.Join(e.cfg.ArtifactDir, schema.FileName)
}

// Validate loads the dataset and runs the configured rule set on it.
func (e *Engine) Validate() (validate.Result, error) {
	if e.validator == nil {
		return validate.Result{Passed: true}, nil
	}
	raw, err := e.load()
	if err != nil {
		return validate.Result{}, err
	}
	return e.validator.Validate(raw), nil
}

// BinaryMismatch lists the columns whose binary encoding at training time
// differs from the fixed serving fields. Such columns encode differently
// at serving time without any error.
func BinaryMismatch(training, serving map[string]features.BinaryRule) []string {
	var out []string
	for col, rule := range training {
		if s, ok := serving[col]; !ok || s != rule {
			out = append(out, col)
		}
	}
	for col := range serving {
		if _, ok := training[col]; !ok {
			out = append(out, col)
		}
	}
	return dedupeSorted(out)
}
