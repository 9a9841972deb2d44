package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultSettle = 250 * time.Millisecond

// Watcher reloads a catalog file whenever it changes on disk.
type Watcher struct {
	path     string
	settle   time.Duration
	logger   *zap.Logger
	onReload func(*Catalog)
}

// NewWatcher builds a Watcher for path. onReload receives every catalog that
// parses and validates; a broken edit is logged and the previous catalog
// stays in effect.
func NewWatcher(path string, onReload func(*Catalog), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		settle:   defaultSettle,
		logger:   logger,
		onReload: onReload,
	}
}

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are seen. Bursts of events within the
// settle window trigger one reload.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	defer func() {
		if closeErr := fw.Close(); closeErr != nil {
			w.logger.Debug("close catalog watcher", zap.Error(closeErr))
		}
	}()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("catalog watcher: watch %s: %w", filepath.Dir(w.path), err)
	}

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				settle.Reset(w.settle)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", zap.Error(err))
		case <-settle.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cat, err := Load(w.path)
	if err != nil {
		w.logger.Warn("catalog reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("catalog reloaded", zap.String("path", w.path), zap.Int("identifiers", len(cat.Identifiers())))
	if w.onReload != nil {
		w.onReload(cat)
	}
}
