// Package watch notices writes to a SQLite database file made by other
// processes so their link edits can be audited promptly.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last write before onChange runs.
const DefaultDebounce = 500 * time.Millisecond

// LocalWriteGrace is how long before a burst of file events a local write
// may have finished and still be taken as its cause.
const LocalWriteGrace = 250 * time.Millisecond

type options struct {
	lastLocal func() time.Time
}

// Option configures Watch.
type Option func(*options)

// WithLocalWrites makes Watch skip bursts that a write of this process may
// have caused. last reports when the process last wrote to the database.
func WithLocalWrites(last func() time.Time) Option {
	return func(o *options) { o.lastLocal = last }
}

// Watch watches the directory of dbPath and calls onChange once writes to
// the database (or its -wal and -journal companions) have been quiet for
// debounce. It returns when ctx is cancelled.
func Watch(ctx context.Context, dbPath string, debounce time.Duration, logger *slog.Logger, onChange func(), opts ...Option) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("db", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	var burst time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			if o.lastLocal != nil && !o.lastLocal().Before(burst.Add(-LocalWriteGrace)) {
				logger.Debug("watcher: own write ignored", slog.String("db", abs))
				continue
			}
			logger.Debug("watcher: database changed", slog.String("db", abs))
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isDBFile(abs, ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if fire == nil {
				burst = time.Now()
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func isDBFile(db, name string) bool {
	name = filepath.Clean(name)
	if name == db {
		return true
	}
	suffix, ok := strings.CutPrefix(name, db)
	return ok && (suffix == "-wal" || suffix == "-journal")
}
