// Package server exposes the churn predictor over HTTP: a JSON API, an HTML
// form and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/churnline/internal/serving"
)

// Server serves predictions from one Predictor loaded at startup.
type Server struct {
	predictor   *serving.Predictor
	addr        string
	watch       bool
	artifactDir string
	logger      *slog.Logger
	stale       atomic.Bool
}

// Config holds configuration for the HTTP server.
type Config struct {
	Predictor   *serving.Predictor
	Addr        string
	Watch       bool
	ArtifactDir string
	Logger      *slog.Logger

	// Build metadata reported by churnline_build_info.
	Version string
	Commit  string
	Date    string
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := cfg.Predictor
	if p == nil {
		p = serving.Unavailable(errors.New("no model configured"))
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8000"
	}
	if cfg.Version != "" {
		BuildInfo.WithLabelValues(cfg.Version, cfg.Commit, cfg.Date).Set(1)
	}
	if p.Ready() {
		ModelReady.Set(1)
	} else {
		ModelReady.Set(0)
	}
	return &Server{
		predictor:   p,
		addr:        addr,
		watch:       cfg.Watch,
		artifactDir: cfg.ArtifactDir,
		logger:      logger,
	}
}

// Stale reports whether artifacts changed on disk since startup.
func (s *Server) Stale() bool { return s.stale.Load() }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
			NoColor: true,
		}),
		middleware.Recoverer,
		metricsMiddleware,
	)

	r.Get("/", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/schema", s.handleSchema)
	r.Post("/predict", s.handlePredict)
	r.Get("/ui", s.handleForm)
	r.Post("/ui", s.handleFormSubmit)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String(), "model_ready", s.predictor.Ready())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.artifactDir != "" {
		eg.Go(func() error {
			return s.watchArtifacts(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
