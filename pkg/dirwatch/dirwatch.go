// Package dirwatch implements a polling directory scanner that yields
// paths of files that are new or modified since the last scan and have
// been quiet (mtime unchanged) for at least a debounce window — enough to
// assume a slicer or upload finished writing them.
//
// Grounded on original_source/src/dirscanner.h's DirScanner: no fsnotify/
// inotify appears anywhere in the example pack for this kind of watch, so
// a debounced poll loop is the grounded translation rather than an
// unrelated ecosystem library.
package dirwatch

import (
	"os"
	"path/filepath"
	"time"
)

// MinAge is the minimum time that must have passed since a file's last
// modification before it is considered "ripe" (spec.md §5's 2-second
// mtime debounce), matching DirScanner::MIN_AGE.
const MinAge = 2 * time.Second

type dirEntry struct {
	path string
	once bool
}

// Watcher polls one or more directories and reports newly settled files.
// It is not safe for concurrent use; the Job Controller owns it
// exclusively, calling Refill from its own goroutine.
type Watcher struct {
	dirs       []dirEntry
	candidates map[string]time.Time // path -> mtime observed at discovery
	lastScan   time.Time
	now        func() time.Time
}

// New creates an empty Watcher.
func New() *Watcher {
	return &Watcher{
		candidates: make(map[string]time.Time),
		now:        time.Now,
	}
}

// AddDir registers a directory to scan. If once is true, the directory is
// scanned exactly one more time and then dropped; otherwise it is
// rescanned on every Refill call.
func (w *Watcher) AddDir(path string, once bool) {
	if path == "" {
		return
	}
	w.dirs = append(w.dirs, dirEntry{path: path, once: once})
}

// Empty reports whether Refill has no chance of ever producing more
// entries: no directories left to scan and no candidates aging toward
// ripeness.
func (w *Watcher) Empty() bool {
	return len(w.dirs) == 0 && len(w.candidates) == 0
}

func (w *Watcher) scan() {
	last := w.lastScan
	cur := w.now()
	w.lastScan = cur
	if last.Equal(cur) {
		return // prevent discovering the same files twice within one tick
	}

	remaining := w.dirs[:0]
	for _, d := range w.dirs {
		entries, err := os.ReadDir(d.path)
		if err != nil {
			if !d.once {
				remaining = append(remaining, d)
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			mtime := info.ModTime()
			if mtime.Before(last) || !mtime.Before(cur) {
				continue
			}
			path := filepath.Join(d.path, e.Name())
			if _, seen := w.candidates[path]; !seen {
				w.candidates[path] = mtime
			}
		}
		if !d.once {
			remaining = append(remaining, d)
		}
	}
	w.dirs = remaining
}

// Refill scans watched directories and returns paths that have gone ripe
// (unmodified for at least MinAge) since a previous call. Paths not yet
// ripe stay queued as candidates for the next call.
func (w *Watcher) Refill() []string {
	w.scan()

	var ripe []string
	now := w.now()
	for path, mtime := range w.candidates {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.candidates, path)
			continue
		}
		if !info.ModTime().Equal(mtime) {
			// still being written; keep watching with the fresher mtime.
			w.candidates[path] = info.ModTime()
			continue
		}
		if now.Sub(mtime) >= MinAge {
			ripe = append(ripe, path)
			delete(w.candidates, path)
		}
	}
	return ripe
}
