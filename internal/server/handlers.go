package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leapstack-labs/churnline/internal/serving"
	"github.com/leapstack-labs/churnline/pkg/core"
)

const maxBodyBytes = 1 << 20

// Error codes returned in error payloads.
const (
	CodeInvalidInput     = "invalid_input"
	CodeModelUnavailable = "model_unavailable"
	CodeInternal         = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error to its HTTP status and code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, core.ErrModelUnavailable):
		return http.StatusServiceUnavailable, CodeModelUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	PredictionErrorsTotal.WithLabelValues(code).Inc()
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.predictor.Ready() {
		s.writeError(w, &core.ModelUnavailableError{Err: s.predictor.Err()})
		return
	}
	s.writeJSON(w, http.StatusOK, readyResponse{Status: "ready", Stale: s.Stale()})
}

type readyResponse struct {
	Status string `json:"status"`
	Stale  bool   `json:"stale,omitempty"`
}

type schemaResponse struct {
	Columns []string `json:"columns"`
	Count   int      `json:"count"`
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	sc := s.predictor.Schema()
	if sc == nil {
		s.writeError(w, &core.ModelUnavailableError{Err: s.predictor.Err()})
		return
	}
	s.writeJSON(w, http.StatusOK, schemaResponse{Columns: sc.Columns(), Count: sc.Len()})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		s.writeError(w, &core.InvalidInputError{Field: "body", Reason: err.Error()})
		return
	}
	if fields == nil {
		s.writeError(w, &core.InvalidInputError{Field: "body", Reason: "expected a JSON object"})
		return
	}

	pred, err := s.predict(r, fields)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pred)
}

func (s *Server) predict(r *http.Request, fields map[string]any) (serving.Prediction, error) {
	pred, err := s.predictor.Predict(r.Context(), fields)
	if err != nil {
		s.logger.Warn("prediction failed", "error", err)
		return pred, err
	}
	PredictionsTotal.WithLabelValues(pred.Label).Inc()
	s.logger.Debug("prediction", "label", pred.Label, "probability", pred.Probability)
	return pred, nil
}
