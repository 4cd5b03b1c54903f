package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/churnline/internal/model"
	"github.com/leapstack-labs/churnline/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churnline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data", "", "dataset")
	flags.String("artifact-dir", "", "artifact directory")
	flags.String("state", "", "state database")
	flags.String("output", "", "output format")
	flags.Float64("test-ratio", 0, "held-out fraction")
	flags.Int("estimators", 0, "boosting rounds")
	flags.String("addr", "", "listen address")
	flags.Int("limit", 10, "not configuration")
	return flags
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	return wd
}

func TestLoad_Defaults(t *testing.T) {
	wd := chdirTemp(t)

	cfg, used, err := Load("", "", nil)
	require.NoError(t, err)
	assert.Empty(t, used)

	assert.Equal(t, filepath.Join(wd, DefaultDataPath), cfg.DataPath)
	assert.Equal(t, filepath.Join(wd, DefaultArtifactDir), cfg.ArtifactDir)
	assert.Equal(t, filepath.Join(wd, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultEnv, cfg.Environment)
	assert.Equal(t, OutputText, cfg.OutputFormat)
	assert.Equal(t, DefaultAddr, cfg.Serve.Addr)
	assert.InDelta(t, 0.5, cfg.Serve.Threshold, 1e-12)
	assert.InDelta(t, 0.2, cfg.Training.TestRatio, 1e-12)
	assert.Equal(t, model.DefaultConfig(), cfg.Training.ModelConfig())
}

func TestLoad_ConfigFileAnchorsRelativePaths(t *testing.T) {
	chdirTemp(t)
	path := writeConfig(t, `data: raw/customers.csv
artifact_dir: out
training:
  n_estimators: 25
  max_depth: 3
serve:
  addr: ":9000"
  watch: true
`)

	cfg, used, err := Load(path, "", nil)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	dir := filepath.Dir(path)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "raw", "customers.csv"), cfg.DataPath)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.ArtifactDir)
	assert.Equal(t, 25, cfg.Training.Estimators)
	assert.Equal(t, 3, cfg.Training.MaxDepth)
	assert.InDelta(t, 0.1, cfg.Training.LearningRate, 1e-12, "unset keys keep defaults")
	assert.Equal(t, ":9000", cfg.Serve.Addr)
	assert.True(t, cfg.Serve.Watch)
}

func TestLoad_FindsConfigUpward(t *testing.T) {
	root := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "churnline.yaml"), []byte("artifact_dir: found\n"), 0o600))
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)

	cfg, used, err := Load("", "", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "churnline.yaml"), used)
	assert.Equal(t, filepath.Join(root, "found"), cfg.ArtifactDir)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	chdirTemp(t)
	_, _, err := Load("does-not-exist.yaml", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvPrecedenceOverFile(t *testing.T) {
	chdirTemp(t)
	path := writeConfig(t, "artifact_dir: /from/file\ntraining:\n  test_ratio: 0.1\n")
	t.Setenv("CHURNLINE_ARTIFACT_DIR", "/from/env")
	t.Setenv("CHURNLINE_TRAINING__TEST_RATIO", "0.3")

	cfg, _, err := Load(path, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.ArtifactDir)
	assert.InDelta(t, 0.3, cfg.Training.TestRatio, 1e-12)
}

func TestLoad_FlagPrecedence(t *testing.T) {
	wd := chdirTemp(t)
	path := writeConfig(t, "artifact_dir: /from/file\n")
	t.Setenv("CHURNLINE_ARTIFACT_DIR", "/from/env")
	t.Setenv("CHURNLINE_SERVE__ADDR", ":7000")

	flags := testFlags()
	require.NoError(t, flags.Set("artifact-dir", "from_flag"))
	require.NoError(t, flags.Set("estimators", "12"))
	require.NoError(t, flags.Set("limit", "3"))

	cfg, _, err := Load(path, "", flags)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, "from_flag"), cfg.ArtifactDir, "flag paths are relative to the working directory")
	assert.Equal(t, 12, cfg.Training.Estimators)
	assert.Equal(t, ":7000", cfg.Serve.Addr, "unset flags fall back to env")
}

func TestLoad_Target(t *testing.T) {
	chdirTemp(t)
	path := writeConfig(t, `artifact_dir: /base/artifacts
environments:
  prod:
    artifact_dir: /prod/artifacts
    state_path: /prod/state.db
`)

	cfg, _, err := Load(path, "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "/prod/artifacts", cfg.ArtifactDir)
	assert.Equal(t, "/prod/state.db", cfg.StatePath)

	cfg, _, err = Load(path, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "/base/artifacts", cfg.ArtifactDir, "dev has no overrides")

	flags := testFlags()
	require.NoError(t, flags.Set("artifact-dir", "/flag"))
	cfg, _, err = Load(path, "prod", flags)
	require.NoError(t, err)
	assert.Equal(t, "/flag", cfg.ArtifactDir, "flags beat environment overrides")

	_, _, err = Load(path, "staging", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target "staging"`)
}

func TestLoad_InvalidValues(t *testing.T) {
	chdirTemp(t)
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{name: "output", content: "output: xml\n", errPart: "unknown output format"},
		{name: "test ratio", content: "training:\n  test_ratio: 1.5\n", errPart: "test_ratio"},
		{name: "threshold", content: "serve:\n  threshold: 0\n", errPart: "threshold"},
		{name: "learning rate", content: "training:\n  learning_rate: -1\n", errPart: "invalid training config"},
		{name: "not yaml", content: "data: [unclosed\n", errPart: "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.content), "", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg := Default()
	cfg.DataPath = "customers.csv"
	cfg.Training.FailOnValidation = true
	cfg.Training.Validation = "none"

	ec := cfg.EngineConfig()
	assert.Equal(t, "customers.csv", ec.DataPath)
	assert.Equal(t, DefaultArtifactDir, ec.ArtifactDir)
	assert.True(t, ec.FailOnValidation)
	assert.Equal(t, "none", ec.Validation)
	assert.Equal(t, model.DefaultConfig(), ec.Model)
	assert.Equal(t, "Churn", ec.Cleaner.TargetColumn)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "artifact_dir", envKey("CHURNLINE_ARTIFACT_DIR"))
	assert.Equal(t, "training.n_estimators", envKey("CHURNLINE_TRAINING__N_ESTIMATORS"))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, GetLogger(ctx), "falls back to a discard logger")
	assert.Equal(t, DefaultArtifactDir, GetConfig(ctx).ArtifactDir)

	logger := testutil.NewTestLogger(t)
	cfg := &Config{ArtifactDir: "x"}
	ctx = WithConfig(WithLogger(ctx, logger), cfg)
	assert.Same(t, logger, GetLogger(ctx))
	assert.Same(t, cfg, GetConfig(ctx))
}
