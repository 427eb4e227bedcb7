// Package watch reloads configured feed sources when the configuration
// file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// DefaultDebounce groups the burst of events an editor produces on save.
const DefaultDebounce = 500 * time.Millisecond

// SourceReloader registers the feeds declared in configuration.
type SourceReloader interface {
	ReloadSources(ctx context.Context, feeds []domain.FeedSource) error
}

// ConfigWatcher re-reads the configuration file after it changes and
// hands the declared feeds to a SourceReloader.
type ConfigWatcher struct {
	store    driven.ConfigStore
	reloader SourceReloader
	clock    clock.Clock
	debounce time.Duration
	path     string
	reloads  chan struct{}
}

// NewConfigWatcher creates a watcher for store's file. A zero debounce
// uses DefaultDebounce; a nil clock uses the wall clock.
func NewConfigWatcher(store driven.ConfigStore, reloader SourceReloader, clk clock.Clock, debounce time.Duration) *ConfigWatcher {
	if clk == nil {
		clk = clock.WallClock
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &ConfigWatcher{
		store:    store,
		reloader: reloader,
		clock:    clk,
		debounce: debounce,
		path:     filepath.Clean(store.Path()),
		reloads:  make(chan struct{}, 1),
	}
}

// Reloaded is signalled after every reload attempt. Tests use it to
// synchronise; the channel holds at most one pending signal.
func (w *ConfigWatcher) Reloaded() <-chan struct{} {
	return w.reloads
}

// Run watches until ctx is cancelled. The directory is watched rather than
// the file so that editors replacing the file do not end the watch.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	logger.Info("Watching %s for feed changes", w.path)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				fire = w.clock.After(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher: %v", err)
		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

// relevant reports whether ev changed the configuration file contents.
func (w *ConfigWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

func (w *ConfigWatcher) reload(ctx context.Context) {
	defer w.signal()

	// A half-written file fails to parse; the next write event retries.
	if err := w.store.Load(); err != nil {
		logger.Warn("config watcher: reload %s: %v", w.path, err)
		return
	}
	feeds := services.LoadPipelineConfig(w.store).Crawl.Feeds
	if err := w.reloader.ReloadSources(ctx, feeds); err != nil {
		logger.Warn("config watcher: %v", err)
		return
	}
	logger.Info("Reloaded %d configured feeds", len(feeds))
}

func (w *ConfigWatcher) signal() {
	select {
	case w.reloads <- struct{}{}:
	default:
	}
}
