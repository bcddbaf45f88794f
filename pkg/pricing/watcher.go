package pricing

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// Source provides the catalog currently in effect
type Source interface {
	Current() *Catalog
}

// Static is a Source that never changes
type Static struct {
	Catalog *Catalog
}

// Current returns the fixed catalog
func (s Static) Current() *Catalog {
	return s.Catalog
}

// Watcher keeps a catalog file loaded and reloads it when the file changes.
// A reload that fails to parse or validate keeps the previous catalog.
type Watcher struct {
	path    string
	current atomic.Pointer[Catalog]
	logger  *observability.Logger
}

// NewWatcher loads the catalog at path. The file must be valid at startup.
func NewWatcher(path string, logger *observability.Logger) (*Watcher, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	w := &Watcher{path: filepath.Clean(path), logger: logger.WithField("catalog", path)}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Current returns the most recently loaded catalog
func (w *Watcher) Current() *Catalog {
	return w.current.Load()
}

// Reload reads the file again and swaps it in when valid
func (w *Watcher) Reload() error {
	catalog, err := LoadCatalog(w.path)
	if err != nil {
		return err
	}
	w.current.Store(catalog)
	return nil
}

// Run watches the catalog until ctx is cancelled. The parent directory is
// watched rather than the file so editors that replace the file on save are
// picked up.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("Watching pricing catalog for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.WithError(err).Warn("Pricing catalog reload failed, keeping previous catalog")
				continue
			}
			w.logger.WithField("price_per_member_monthly", w.Current().PricePerMemberMonthly).
				Info("Pricing catalog reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("Pricing catalog watcher error")
		}
	}
}

var (
	_ Source = (*Watcher)(nil)
	_ Source = Static{}
)
