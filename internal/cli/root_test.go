package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/churnline/internal/serving"
	"github.com/leapstack-labs/churnline/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// project writes a dataset and a config file into a fresh working directory.
func project(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	dir, err := os.Getwd()
	require.NoError(t, err)
	testutil.WriteTelcoCSV(t, filepath.Join(dir, "data", "telco_churn.csv"), 400)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "churnline.yaml"), []byte(`training:
  n_estimators: 40
  max_depth: 3
`), 0o600))
	return dir
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"train", "prepare", "validate", "predict", "serve", "schema", "runs", "version", "completion"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "target", "data", "artifact-dir", "state", "verbose", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestTrainPredictSchemaRuns(t *testing.T) {
	dir := project(t)

	out, _, err := execute(t, "train", "-o", "json")
	require.NoError(t, err)

	var trained struct {
		RunID     string             `json:"run_id"`
		Status    string             `json:"status"`
		Features  int                `json:"features"`
		TrainRows int                `json:"train_rows"`
		TestRows  int                `json:"test_rows"`
		Metrics   map[string]float64 `json:"metrics"`
		ModelPath string             `json:"model_path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &trained))
	assert.NotEmpty(t, trained.RunID)
	assert.Equal(t, "completed", trained.Status)
	assert.Equal(t, 320, trained.TrainRows)
	assert.Equal(t, 80, trained.TestRows)
	assert.GreaterOrEqual(t, trained.Metrics["accuracy"], 0.9)
	assert.Equal(t, filepath.Join(dir, "artifacts", "model.json"), trained.ModelPath)
	assert.FileExists(t, filepath.Join(dir, "artifacts", "feature_columns.txt"))
	assert.FileExists(t, filepath.Join(dir, ".churnline", "state.db"))

	t.Run("predict", func(t *testing.T) {
		out, _, err := execute(t, "predict", "--example", "0", "-o", "json")
		require.NoError(t, err)
		var pred serving.Prediction
		require.NoError(t, json.Unmarshal([]byte(out), &pred))
		assert.Equal(t, serving.LabelChurn, pred.Label)
		assert.Equal(t, 1, pred.Class)

		out, _, err = execute(t, "predict", "--example", "0", "--set", "Contract=Two year", "--set", "tenure=60")
		require.NoError(t, err)
		assert.Contains(t, out, serving.LabelNoChurn)
	})

	t.Run("predict from stdin", func(t *testing.T) {
		root := NewRootCmd()
		var buf bytes.Buffer
		root.SetOut(&buf)
		root.SetErr(&bytes.Buffer{})
		root.SetIn(strings.NewReader(`{"Contract": "Month-to-month", "tenure": 2, "MonthlyCharges": "70.5"}`))
		root.SetArgs([]string{"predict", "--file", "-", "-o", "json"})
		require.NoError(t, root.Execute())
		assert.Contains(t, buf.String(), `"prediction"`)
	})

	t.Run("schema", func(t *testing.T) {
		out, _, err := execute(t, "schema", "-o", "json")
		require.NoError(t, err)
		var cols []string
		require.NoError(t, json.Unmarshal([]byte(out), &cols))
		assert.Len(t, cols, trained.Features)
		assert.Contains(t, cols, "tenure")

		out, _, err = execute(t, "schema")
		require.NoError(t, err)
		assert.Contains(t, out, "tenure")
	})

	t.Run("schema check", func(t *testing.T) {
		req := filepath.Join(dir, "req.json")
		require.NoError(t, os.WriteFile(req, []byte(`{"Contract": "Weekly", "tenure": 3}`), 0o600))

		out, _, err := execute(t, "schema", "--check", req, "-o", "json")
		require.NoError(t, err)
		var drift struct {
			Missing []string `json:"missing"`
			Extra   []string `json:"extra"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &drift))
		assert.Equal(t, []string{"Contract_Weekly"}, drift.Extra)
		assert.Contains(t, drift.Missing, "MonthlyCharges")
	})

	t.Run("runs", func(t *testing.T) {
		out, _, err := execute(t, "runs", "-o", "json")
		require.NoError(t, err)
		var runs []struct {
			ID      string             `json:"id"`
			Status  string             `json:"status"`
			Metrics map[string]float64 `json:"metrics"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, trained.RunID, runs[0].ID)
		assert.InDelta(t, trained.Metrics["accuracy"], runs[0].Metrics["accuracy"], 1e-12)

		out, _, err = execute(t, "runs", "show", trained.RunID)
		require.NoError(t, err)
		assert.Contains(t, out, "n_estimators")
		assert.Contains(t, out, "accuracy")

		_, _, err = execute(t, "runs", "show", "missing-id")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run not found")
	})
}

func TestPredict_NoArtifacts(t *testing.T) {
	project(t)
	_, _, err := execute(t, "predict", "--example", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")
}

func TestPredict_NoFields(t *testing.T) {
	project(t)
	_, _, err := execute(t, "predict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no request fields")
}

func TestPrepare(t *testing.T) {
	dir := project(t)
	out, _, err := execute(t, "prepare", "--out", "processed.csv", "-o", "json")
	require.NoError(t, err)

	var res struct {
		Rows          int               `json:"rows"`
		BinaryColumns []string          `json:"binary_columns"`
		Baselines     map[string]string `json:"baselines"`
		Passed        bool              `json:"validation_passed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 400, res.Rows)
	assert.Contains(t, res.BinaryColumns, "gender")
	assert.Equal(t, "Month-to-month", res.Baselines["Contract"])
	assert.Equal(t, "DSL", res.Baselines["InternetService"])
	assert.True(t, res.Passed)

	data, err := os.ReadFile(filepath.Join(dir, "processed.csv"))
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.True(t, strings.HasSuffix(strings.TrimSpace(header), "Churn"))
}

func TestValidate(t *testing.T) {
	dir := project(t)

	out, _, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Validation passed")

	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`name: strict
rules:
  - column: tenure
    check: between
    min: 100
`), 0o600))

	out, _, err = execute(t, "validate", "--validation", rules)
	require.NoError(t, err, "validation is informational by default")
	assert.Contains(t, out, "tenure: between")

	_, _, err = execute(t, "validate", "--validation", rules, "--fail-on-validation")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestTrain_MissingDataset(t *testing.T) {
	project(t)
	_, _, err := execute(t, "train", "--data", "nope.csv", "--state", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training failed")
}

func TestRuns_NothingTracked(t *testing.T) {
	project(t)
	out, _, err := execute(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs tracked yet")
}

func TestInvalidOutputFormat(t *testing.T) {
	project(t)
	_, _, err := execute(t, "schema", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestVersionAndCompletion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "churnline v"+Version)

	out, _, err = execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "churnline")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestVerboseLogsToStderr(t *testing.T) {
	project(t)
	out, errOut, err := execute(t, "validate", "-v", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, "loaded dataset")
	assert.True(t, json.Valid([]byte(out)), "stdout stays machine readable: %s", out)
}
