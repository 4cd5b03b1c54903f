package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/leapstack-labs/churnline/internal/serving"
	"github.com/leapstack-labs/churnline/pkg/core"
)

//go:embed templates/*.html
var templateFS embed.FS

var formTemplate = template.Must(template.ParseFS(templateFS, "templates/form.html"))

type formPage struct {
	Fields     []FormField
	Values     map[string]string
	Examples   []serving.Example
	Ready      bool
	Prediction *serving.Prediction
	Error      string
}

func (s *Server) newFormPage(values map[string]string) formPage {
	if values == nil {
		values = map[string]string{}
	}
	return formPage{
		Fields:   customerFields,
		Values:   values,
		Examples: serving.Examples(),
		Ready:    s.predictor.Ready(),
	}
}

func (s *Server) renderForm(w http.ResponseWriter, status int, page formPage) {
	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, page); err != nil {
		s.logger.Error("failed to render form", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if q := r.URL.Query().Get("example"); q != "" {
		examples := serving.Examples()
		i, err := strconv.Atoi(q)
		if err != nil || i < 0 || i >= len(examples) {
			http.Error(w, "unknown example", http.StatusNotFound)
			return
		}
		values = formValues(examples[i].Fields)
	}
	s.renderForm(w, http.StatusOK, s.newFormPage(values))
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		page := s.newFormPage(nil)
		page.Error = err.Error()
		s.renderForm(w, http.StatusBadRequest, page)
		return
	}

	form, err := DecodeForm(r.PostForm)
	var fields map[string]any
	if err == nil {
		fields, err = form.Fields()
	}
	if err != nil {
		page := s.newFormPage(nil)
		page.Error = (&core.InvalidInputError{Reason: err.Error()}).Error()
		s.renderForm(w, http.StatusBadRequest, page)
		return
	}

	page := s.newFormPage(formValues(fields))
	pred, err := s.predict(r, fields)
	if err != nil {
		status, code := classify(err)
		PredictionErrorsTotal.WithLabelValues(code).Inc()
		page.Error = err.Error()
		s.renderForm(w, status, page)
		return
	}
	page.Prediction = &pred
	s.renderForm(w, http.StatusOK, page)
}
