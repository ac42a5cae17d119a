package compiler

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// skipDir reports whether a directory is never watched.
func skipDir(name string) bool {
	return name == "node_modules" || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// watcher turns file system changes under a set of roots into debounced
// rebuild requests. Directories created later are watched as they appear.
type watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger
}

func newWatcher(roots []string, logger *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{fs: fw, logger: logger}
	for _, root := range roots {
		if err := w.add(root); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Watch path does not exist", "path", root)
				continue
			}
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// add watches path, recursing into directories.
func (w *watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fs.Add(path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != path && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		w.logger.Debug("Watching directory", "path", p)
		return w.fs.Add(p)
	})
}

// run forwards changes to rebuild once no further change arrived for debounce.
func (w *watcher) run(ctx context.Context, debounce time.Duration, rebuild func()) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("Change detected", "path", ev.Name, "op", ev.Op.String())
			if debounce <= 0 {
				rebuild()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		case <-fire:
			fire = nil
			rebuild()
		}
	}
}

func (w *watcher) relevant(ev fsnotify.Event) bool {
	if skipDir(filepath.Base(ev.Name)) {
		return false
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.add(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err)
			}
		}
	}
	return true
}

func (w *watcher) close() {
	if err := w.fs.Close(); err != nil {
		w.logger.Debug("Failed to close file watcher", "error", err)
	}
}
