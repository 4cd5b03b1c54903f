package model

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/leapstack-labs/churnline/internal/testutil"
)

// thresholdData labels rows positive when the first feature is below 30.
// The second feature is noise.
func thresholdData() (*mat.Dense, []float64) {
	n := 100
	data := make([]float64, 0, n*2)
	y := make([]float64, n)
	for i := range n {
		data = append(data, float64(i), float64((i*37)%11))
		if i < 30 {
			y[i] = 1
		}
	}
	return mat.NewDense(n, 2, data), y
}

func TestGBDT_LearnsThreshold(t *testing.T) {
	X, y := thresholdData()
	m := NewGBDT(
		WithEstimators(50),
		WithLearningRate(0.3),
		WithMaxDepth(3),
		WithLogger(testutil.NewTestLogger(t)),
	)
	require.NoError(t, m.Fit(X, y))

	assert.True(t, m.Fitted())
	assert.Equal(t, 2, m.NumFeatures())
	assert.Len(t, m.Trees, 50)

	proba := m.PredictProbaMatrix(X)
	for i, p := range proba {
		assert.Equal(t, int(y[i]), Classify(p, DefaultThreshold), "row %d p=%f", i, p)
	}
	assert.Greater(t, m.PredictProba([]float64{5, 0}), 0.9)
	assert.Less(t, m.PredictProba([]float64{90, 0}), 0.1)
	assert.Equal(t, 1, m.Predict([]float64{0, 3}))
	assert.Equal(t, 0, m.Predict([]float64{99, 3}))
}

func TestGBDT_FirstSplitIsTheThreshold(t *testing.T) {
	X, y := thresholdData()
	m := NewGBDT(WithEstimators(1), WithMaxDepth(1))
	require.NoError(t, m.Fit(X, y))

	root := m.Trees[0].Nodes[0]
	assert.False(t, root.Leaf)
	assert.Equal(t, 0, root.Feature)
	assert.Equal(t, 29.5, root.Threshold)
	assert.Greater(t, m.Trees[0].Nodes[root.Left].Value, 0.0)
	assert.Less(t, m.Trees[0].Nodes[root.Right].Value, 0.0)
}

func TestGBDT_DeterministicWithSeed(t *testing.T) {
	X, y := thresholdData()
	a := NewGBDT(WithEstimators(10), WithSubsample(0.7), WithSeed(7))
	b := NewGBDT(WithEstimators(10), WithSubsample(0.7), WithSeed(7))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Trees, b.Trees)
	assert.Equal(t, a.BaseScore, b.BaseScore)
}

func TestGBDT_ConstantFeaturesGiveLeafOnlyTrees(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	y := []float64{0, 1, 0, 1}
	m := NewGBDT(WithEstimators(3))
	require.NoError(t, m.Fit(X, y))

	for _, tree := range m.Trees {
		require.Len(t, tree.Nodes, 1)
		assert.True(t, tree.Nodes[0].Leaf)
	}
	assert.InDelta(t, 0.5, m.PredictProba([]float64{1}), 1e-9)
}

func TestGBDT_FitErrors(t *testing.T) {
	X, y := thresholdData()

	tests := []struct {
		name    string
		model   *GBDT
		X       mat.Matrix
		y       []float64
		wantErr string
	}{
		{name: "label count", model: NewGBDT(), X: X, y: y[:10], wantErr: "100 rows but 10 labels"},
		{name: "label value", model: NewGBDT(), X: mat.NewDense(2, 1, []float64{0, 1}), y: []float64{0, 2}, wantErr: "label 2 at row 1"},
		{name: "estimators", model: NewGBDT(WithEstimators(0)), X: X, y: y, wantErr: "n_estimators"},
		{name: "learning rate", model: NewGBDT(WithLearningRate(0)), X: X, y: y, wantErr: "learning_rate"},
		{name: "depth", model: NewGBDT(WithMaxDepth(0)), X: X, y: y, wantErr: "max_depth"},
		{name: "subsample", model: NewGBDT(WithSubsample(1.5)), X: X, y: y, wantErr: "subsample"},
		{name: "lambda", model: NewGBDT(WithLambda(-1)), X: X, y: y, wantErr: "reg_lambda"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Fit(tt.X, tt.y)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 300, c.Estimators)
	assert.Equal(t, 0.1, c.LearningRate)
	assert.Equal(t, 6, c.MaxDepth)
	assert.Equal(t, int64(42), c.Seed)
	assert.NoError(t, c.Validate())
}

func TestTree_EvalShortVector(t *testing.T) {
	tree := Tree{Nodes: []Node{
		{Feature: 3, Threshold: 0.5, Left: 1, Right: 2},
		{Leaf: true, Value: -1},
		{Leaf: true, Value: 1},
	}}
	assert.Equal(t, -1.0, tree.Eval([]float64{9}))
	assert.Equal(t, 1.0, tree.Eval([]float64{0, 0, 0, 1}))
}

func TestSaveLoad(t *testing.T) {
	X, y := thresholdData()
	m := NewGBDT(WithEstimators(5), WithMaxDepth(2))
	require.NoError(t, m.Fit(X, y))

	path := filepath.Join(t.TempDir(), "artifacts", FileName)
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Config, loaded.Config)
	assert.Equal(t, m.Features, loaded.Features)
	for _, x := range [][]float64{{0, 0}, {29, 4}, {30, 4}, {75, 10}} {
		assert.InDelta(t, m.PredictProba(x), loaded.PredictProba(x), 1e-12)
	}
}

func TestEncode_Untrained(t *testing.T) {
	var buf bytes.Buffer
	err := NewGBDT().Encode(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not trained")
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "garbage", body: "not json", wantErr: "failed to decode model"},
		{name: "format", body: `{"format":"xgboost","version":1,"n_features":1}`, wantErr: "unknown model format"},
		{name: "version", body: `{"format":"churnline-gbdt","version":9,"n_features":1}`, wantErr: "unsupported model version"},
		{name: "features", body: `{"format":"churnline-gbdt","version":1,"n_features":0}`, wantErr: "no features"},
		{name: "empty tree", body: `{"format":"churnline-gbdt","version":1,"n_features":1,"trees":[{"nodes":[]}]}`, wantErr: "tree 0: empty tree"},
		{
			name:    "loop",
			body:    `{"format":"churnline-gbdt","version":1,"n_features":1,"trees":[{"nodes":[{"feature":0,"threshold":1,"left":0,"right":1},{"leaf":true}]}]}`,
			wantErr: "invalid children",
		},
		{
			name:    "feature range",
			body:    `{"format":"churnline-gbdt","version":1,"n_features":1,"trees":[{"nodes":[{"feature":4,"threshold":1,"left":1,"right":2},{"leaf":true},{"leaf":true}]}]}`,
			wantErr: "feature 4 out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open model")
}
