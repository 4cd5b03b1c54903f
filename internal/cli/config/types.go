// Package config loads churnline CLI configuration.
//
// Values are layered from built-in defaults, a churnline.yaml file,
// CHURNLINE_ environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"github.com/leapstack-labs/churnline/internal/engine"
	"github.com/leapstack-labs/churnline/internal/model"
	"github.com/leapstack-labs/churnline/internal/validate"
)

// Default configuration values.
const (
	DefaultDataPath    = "data/telco_churn.csv"
	DefaultArtifactDir = "artifacts"
	DefaultStateFile   = ".churnline/state.db"
	DefaultEnv         = "dev"
	DefaultOutput      = OutputText
	DefaultAddr        = ":8000"
	DefaultTestRatio   = 0.2
	DefaultThreshold   = model.DefaultThreshold
)

// Output formats.
const (
	OutputText     = "text"
	OutputJSON     = "json"
	OutputMarkdown = "markdown"
)

// Config holds all CLI configuration options.
type Config struct {
	DataPath     string               `koanf:"data"`
	ArtifactDir  string               `koanf:"artifact_dir"`
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Training     TrainingConfig       `koanf:"training"`
	Serve        ServeConfig          `koanf:"serve"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// TrainingConfig configures the training pipeline.
type TrainingConfig struct {
	Validation       string  `koanf:"validation"`
	FailOnValidation bool    `koanf:"fail_on_validation"`
	TestRatio        float64 `koanf:"test_ratio"`
	Estimators       int     `koanf:"n_estimators"`
	LearningRate     float64 `koanf:"learning_rate"`
	MaxDepth         int     `koanf:"max_depth"`
	MinChildWeight   float64 `koanf:"min_child_weight"`
	Lambda           float64 `koanf:"reg_lambda"`
	Subsample        float64 `koanf:"subsample"`
	Seed             int64   `koanf:"random_state"`
}

// ServeConfig configures the prediction server.
type ServeConfig struct {
	Addr      string  `koanf:"addr"`
	Watch     bool    `koanf:"watch"`
	Threshold float64 `koanf:"threshold"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	DataPath    string `koanf:"data"`
	ArtifactDir string `koanf:"artifact_dir"`
	StatePath   string `koanf:"state_path"`
}

// ModelConfig returns the boosting hyperparameters.
func (t TrainingConfig) ModelConfig() model.Config {
	return model.Config{
		Estimators:     t.Estimators,
		LearningRate:   t.LearningRate,
		MaxDepth:       t.MaxDepth,
		MinChildWeight: t.MinChildWeight,
		Lambda:         t.Lambda,
		Subsample:      t.Subsample,
		Seed:           t.Seed,
	}
}

// EngineConfig builds the training engine configuration.
func (c *Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.DataPath = c.DataPath
	ec.ArtifactDir = c.ArtifactDir
	ec.StatePath = c.StatePath
	ec.Validation = c.Training.Validation
	ec.FailOnValidation = c.Training.FailOnValidation
	ec.TestRatio = c.Training.TestRatio
	ec.Model = c.Training.ModelConfig()
	return ec
}

func defaults() map[string]any {
	m := model.DefaultConfig()
	return map[string]any{
		"data":         DefaultDataPath,
		"artifact_dir": DefaultArtifactDir,
		"state_path":   DefaultStateFile,
		"environment":  DefaultEnv,
		"verbose":      false,
		"output":       DefaultOutput,

		"training.validation":         validate.SchemaRules,
		"training.fail_on_validation": false,
		"training.test_ratio":         DefaultTestRatio,
		"training.n_estimators":       m.Estimators,
		"training.learning_rate":      m.LearningRate,
		"training.max_depth":          m.MaxDepth,
		"training.min_child_weight":   m.MinChildWeight,
		"training.reg_lambda":         m.Lambda,
		"training.subsample":          m.Subsample,
		"training.random_state":       m.Seed,

		"serve.addr":      DefaultAddr,
		"serve.watch":     false,
		"serve.threshold": DefaultThreshold,
	}
}
