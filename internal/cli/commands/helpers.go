package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/churnline/internal/cli/config"
	"github.com/leapstack-labs/churnline/internal/engine"
	"github.com/leapstack-labs/churnline/internal/state"
)

func getConfig(cmd *cobra.Command) *config.Config {
	return config.GetConfig(cmd.Context())
}

func getLogger(cmd *cobra.Command) *slog.Logger {
	return config.GetLogger(cmd.Context())
}

func getRenderer(cmd *cobra.Command) *renderer {
	return newRenderer(cmd.OutOrStdout(), getConfig(cmd).OutputFormat)
}

// ensureParentDir creates the directory holding path.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// createEngine creates a training engine from the current configuration.
func createEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg := getConfig(cmd)
	ec := cfg.EngineConfig()
	ec.Logger = getLogger(cmd)
	if ec.StatePath != "" {
		if err := ensureParentDir(ec.StatePath); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return engine.New(ec)
}

// openStore opens the tracking database for reading. It returns nil when
// nothing has been tracked yet.
func openStore(cmd *cobra.Command) (*state.SQLiteStore, error) {
	path := getConfig(cmd).StatePath
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	store := state.NewSQLiteStore(getLogger(cmd))
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	return store, nil
}
