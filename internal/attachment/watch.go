package attachment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a dropped file must stay unchanged before it
// is picked up.
const DefaultDebounce = 500 * time.Millisecond

// ErrNoMatch is returned by ExpandPatterns for a pattern that selects no file.
var ErrNoMatch = errors.New("no file matches pattern")

// ExpandPatterns resolves file arguments to regular files. Each argument is
// a path or a doublestar pattern ("**/*.pdf"). Results keep argument order
// and contain no duplicates.
func ExpandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%q: %w", pattern, ErrNoMatch)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long a file must be quiet before it is added.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// Watcher adds files dropped into a directory to one task.
//
// Only files created after the watch starts are considered. A file is added
// once; later writes to it are ignored until it is removed or renamed away.
type Watcher struct {
	catalogue *Catalogue
	dir       string
	taskID    int64
	pattern   string
	debounce  time.Duration
	fsw       *fsnotify.Watcher

	// pending maps a path to the time of its last event.
	pending map[string]time.Time
	added   map[string]bool
}

// NewWatcher starts watching dir. Files whose name relative to dir matches
// pattern are added to taskID. An empty pattern matches everything.
// Call Run to process events.
func (c *Catalogue) NewWatcher(dir string, taskID int64, pattern string, opts ...WatchOption) (*Watcher, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		catalogue: c,
		dir:       dir,
		taskID:    taskID,
		pattern:   pattern,
		debounce:  DefaultDebounce,
		fsw:       fsw,
		pending:   make(map[string]time.Time),
		added:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	return w, nil
}

// Watch adds files dropped into dir to taskID until ctx is cancelled.
func (c *Catalogue) Watch(ctx context.Context, dir string, taskID int64, pattern string, opts ...WatchOption) error {
	w, err := c.NewWatcher(dir, taskID, pattern, opts...)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Run processes events until ctx is cancelled, then releases the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	w.catalogue.logger.Info("watching for attachments", "dir", w.dir, "task", w.taskID, "pattern", w.pattern)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.catalogue.logger.Error("attachment watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil {
		return
	}
	if ok, _ := doublestar.PathMatch(w.pattern, rel); !ok {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		delete(w.pending, event.Name)
		delete(w.added, event.Name)
		return
	}
	if w.added[event.Name] {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
		w.pending[event.Name] = time.Now()
	}
}

// flush adds every pending file that has been quiet for the debounce period.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.catalogue.logger.Warn("stat dropped file", "path", path, "error", err)
			}
			continue
		}

		res := w.catalogue.Add(ctx, w.taskID, FromPath(path))[0]
		if res.Err != nil {
			w.catalogue.logger.Error("add dropped file", "path", path, "error", res.Err)
			continue
		}
		w.added[path] = true
		w.catalogue.logger.Info("attached dropped file", "path", path, "key", res.Key, "task", w.taskID)
	}
}
