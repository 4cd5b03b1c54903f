package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/churnline/internal/cli/config"
	"github.com/leapstack-labs/churnline/internal/server"
	"github.com/leapstack-labs/churnline/internal/serving"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewServeCommand creates the serve command.
func NewServeCommand(build BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Start the prediction server: a JSON API on /predict, an HTML form on /ui
and Prometheus metrics on /metrics.

The model and feature schema are loaded once at startup. When they are
missing the server still starts; health checks pass and predictions fail
with a model-unavailable error.`,
		Example: `  churnline serve
  churnline serve --addr :9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, build)
		},
	}

	cmd.Flags().String("addr", config.DefaultAddr, "Listen address")
	cmd.Flags().Bool("watch", false, "Warn when artifacts change on disk")
	cmd.Flags().Float64("threshold", config.DefaultThreshold, "Positive-class probability threshold")

	return cmd
}

func runServe(cmd *cobra.Command, build BuildInfo) error {
	cfg := getConfig(cmd)
	logger := getLogger(cmd)

	p := serving.LoadOrUnavailable(cfg.ArtifactDir, logger, serving.WithThreshold(cfg.Serve.Threshold))

	srv := server.NewServer(server.Config{
		Predictor:   p,
		Addr:        cfg.Serve.Addr,
		Watch:       cfg.Serve.Watch,
		ArtifactDir: cfg.ArtifactDir,
		Logger:      logger,
		Version:     build.Version,
		Commit:      build.Commit,
		Date:        build.Date,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
