package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Live serves the tier table loaded from a TOML file and swaps in a new one
// whenever the file changes. A file that fails to parse is logged and the
// previous table stays in force.
type Live struct {
	path     string
	table    atomic.Pointer[Table]
	logger   *slog.Logger
	debounce time.Duration
}

// NewLive loads path once. An empty path serves the defaults and never reloads.
func NewLive(path string, logger *slog.Logger) (*Live, error) {
	table, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Live{path: path, logger: logger, debounce: defaultDebounce}
	l.table.Store(&table)
	return l, nil
}

func (l *Live) Current() Table {
	return *l.table.Load()
}

// Watch reloads the table on file changes until ctx is cancelled. The
// directory is watched rather than the file so editors that replace the file
// (write to temp, rename over) are picked up.
func (l *Live) Watch(ctx context.Context) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(l.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	target := filepath.Clean(l.path)
	timer := time.NewTimer(l.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(l.debounce)

		case <-timer.C:
			l.reload(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			l.logger.WarnContext(ctx, "tier policy watcher error", "error", err)
		}
	}
}

func (l *Live) reload(ctx context.Context) {
	table, err := LoadFile(l.path)
	if err != nil {
		l.logger.WarnContext(ctx, "tier policy reload rejected, keeping previous table",
			"path", l.path,
			"error", err,
		)
		return
	}
	l.table.Store(&table)
	l.logger.InfoContext(ctx, "tier policy reloaded", "path", l.path)
}
