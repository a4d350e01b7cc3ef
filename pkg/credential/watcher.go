package credential

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads the credential file when it changes on disk.
// It watches the file's directory (editors replace files rather than
// rewrite them in place) and debounces bursts of events into one reload.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the credential file at path.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:     path,
		debounce: debounce,
		watcher:  fw,
		logger:   slog.Default().With("component", "credential.watcher"),
	}, nil
}

// Watch blocks, invoking onReload after each debounced change to the
// credential file, until the context is cancelled. Reload errors are
// logged and watching continues with the previous pool state.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("credential watcher error", "error", err)

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.logger.Info("credential file changed, reloading", "file", w.path)
			if err := onReload(); err != nil {
				w.logger.Error("credential reload failed, keeping previous state", "error", err)
			}
		}
	}
}
