package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/churnline/internal/model"
	"github.com/leapstack-labs/churnline/internal/schema"
)

const watchDebounce = 100 * time.Millisecond

// watchArtifacts flags the server as stale when the model or schema file
// changes on disk. Artifacts are only read at startup, so a restart is
// needed to pick them up.
func (s *Server) watchArtifacts(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.artifactDir); err != nil {
		s.logger.Error("failed to watch artifact directory", "dir", s.artifactDir, "error", err)
		// Don't fail - continue without watching
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			switch filepath.Base(event.Name) {
			case model.FileName, schema.FileName:
			default:
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				s.stale.Store(true)
				s.logger.Warn("artifact changed on disk, restart required to load it", "file", name)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
