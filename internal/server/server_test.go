package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/churnline/internal/schema"
	"github.com/leapstack-labs/churnline/internal/serving"
	"github.com/leapstack-labs/churnline/internal/testutil"
)

// contractModel scores month-to-month customers as likely to churn.
type contractModel struct{}

func (contractModel) PredictProba(x []float64) float64 {
	if x[1] == 1 {
		return 0.8
	}
	return 0.1
}

func (contractModel) NumFeatures() int { return 2 }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := schema.New([]string{"tenure", "Contract_Month-to-month"})
	require.NoError(t, err)
	p, err := serving.NewPredictor(contractModel{}, s)
	require.NoError(t, err)
	return NewServer(Config{Predictor: p, Logger: testutil.NewTestLogger(t)})
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if method == http.MethodPost && strings.HasPrefix(target, "/ui") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t).Handler()
	for _, path := range []string{"/", "/healthz"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "ok", decode(t, rec)["status"], path)
	}
}

func TestReady(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	down := NewServer(Config{Predictor: serving.Unavailable(errors.New("no model.json"))})
	rec = do(t, down.Handler(), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeModelUnavailable, decode(t, rec)["code"])
}

func TestSchema(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out schemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"tenure", "Contract_Month-to-month"}, out.Columns)
	assert.Equal(t, 2, out.Count)
}

func TestPredict(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name     string
		body     string
		status   int
		label    string
		code     string
		probable float64
	}{
		{
			name:     "likely to churn",
			body:     `{"Contract": "Month-to-month", "tenure": 2}`,
			status:   http.StatusOK,
			label:    serving.LabelChurn,
			probable: 0.8,
		},
		{
			name:     "not likely to churn",
			body:     `{"Contract": "Two year", "tenure": "60"}`,
			status:   http.StatusOK,
			label:    serving.LabelNoChurn,
			probable: 0.1,
		},
		{
			name:     "empty object",
			body:     `{}`,
			status:   http.StatusOK,
			label:    serving.LabelNoChurn,
			probable: 0.1,
		},
		{name: "malformed json", body: `{"tenure":`, status: http.StatusBadRequest, code: CodeInvalidInput},
		{name: "not an object", body: `[1, 2]`, status: http.StatusBadRequest, code: CodeInvalidInput},
		{name: "null body", body: `null`, status: http.StatusBadRequest, code: CodeInvalidInput},
		{name: "nested value", body: `{"Contract": {"kind": "x"}}`, status: http.StatusBadRequest, code: CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/predict", strings.NewReader(tt.body))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			out := decode(t, rec)
			if tt.code != "" {
				assert.Equal(t, tt.code, out["code"])
				assert.NotEmpty(t, out["error"])
				return
			}
			assert.Equal(t, tt.label, out["prediction"])
			assert.InDelta(t, tt.probable, out["probability"], 1e-9)
		})
	}
}

func TestPredict_ModelUnavailable(t *testing.T) {
	s := NewServer(Config{Predictor: serving.Unavailable(errors.New("failed to open model"))})
	rec := do(t, s.Handler(), http.MethodPost, "/predict", strings.NewReader(`{"tenure": 1}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, CodeModelUnavailable, out["code"])
	assert.Contains(t, out["error"], "failed to open model")
}

func TestNewServer_NilPredictorIsUnavailable(t *testing.T) {
	rec := do(t, NewServer(Config{}).Handler(), http.MethodGet, "/schema", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()
	do(t, h, http.MethodPost, "/predict", strings.NewReader(`{"Contract": "Month-to-month"}`))

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `churnline_predictions_total{label="Likely to churn"}`)
	assert.Contains(t, body, `churnline_http_requests_total{method="POST",path="/predict",status="200"}`)
	assert.Contains(t, body, "churnline_model_ready 1")
}

func TestForm_Get(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/ui", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	for _, f := range CustomerFields() {
		assert.Contains(t, body, `name="`+f.Name+`"`)
	}
	assert.Contains(t, body, "High churn risk")

	rec = do(t, h, http.MethodGet, "/ui?example=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="Two year" selected>`)

	rec = do(t, h, http.MethodGet, "/ui?example=9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForm_Submit(t *testing.T) {
	h := newTestServer(t).Handler()

	form := url.Values{
		"Contract": {"Month-to-month"},
		"tenure":   {"3"},
		"gender":   {"Female"},
		"Unknown":  {"ignored"},
	}
	rec := do(t, h, http.MethodPost, "/ui", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="result"`)
	assert.Contains(t, body, serving.LabelChurn)
	assert.Contains(t, body, "0.800")
	assert.Contains(t, body, `value="3"`)
}

func TestForm_SubmitUnavailable(t *testing.T) {
	s := NewServer(Config{Predictor: serving.Unavailable(errors.New("missing artifacts"))})
	rec := do(t, s.Handler(), http.MethodPost, "/ui", strings.NewReader("tenure=1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="error"`)
	assert.Contains(t, body, "missing artifacts")
	assert.Contains(t, body, "The model is not loaded")
}

func TestDecodeForm(t *testing.T) {
	form, err := DecodeForm(url.Values{
		"gender":         {"Male"},
		"MonthlyCharges": {"29.85"},
		"PaymentMethod":  {"Mailed check"},
		"extra":          {"x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Male", form.Gender)
	assert.Equal(t, "29.85", form.MonthlyCharges)

	fields, err := form.Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"gender":         "Male",
		"MonthlyCharges": "29.85",
		"PaymentMethod":  "Mailed check",
	}, fields)
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	s := NewServer(Config{Addr: ln.Addr().String()})
	err = s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestWatchArtifacts_MarksStale(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t)
	s.watch = true
	s.artifactDir = dir

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.serve(ctx, ln) }()

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(3 * watchDebounce)
	assert.False(t, s.Stale())

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, schema.FileName), []byte("tenure\n"), 0o600)
		return s.Stale()
	}, 5*time.Second, 50*time.Millisecond)

	rec := do(t, s.Handler(), http.MethodGet, "/readyz", nil)
	assert.Equal(t, true, decode(t, rec)["stale"])
}
