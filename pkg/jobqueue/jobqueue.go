// Package jobqueue implements the Job Controller (spec component E): a
// FIFO of source descriptors seeded from the CLI, merged with a directory
// watcher's discoveries, sequenced one job at a time into the Protocol
// Engine, with an ioerror policy and hard-fault retry backoff.
//
// Grounded on original_source/src/marlinfeed.cpp's job-sequencing loop
// (infile_queue, gcode_extension filter, ioerror_next, the
// sleep(5*hard_error_count) hard-fault backoff) and fifo.h/dirscanner.h
// for the underlying queue and watcher.
package jobqueue

import (
	"path/filepath"
	"strings"
	"time"

	"marlinfeed/pkg/dirwatch"
	"marlinfeed/pkg/fifo"
)

// IOErrorPolicy controls what happens after a job fails.
type IOErrorPolicy int

const (
	// PolicyNext moves on to the next queued source (default when the
	// HTTP surface is enabled, since a human can still intervene).
	PolicyNext IOErrorPolicy = iota
	// PolicyQuit exits the process non-zero after reporting the failure.
	PolicyQuit
)

// DefaultPolicy returns the ioerror default per spec.md §4.E: "next" if
// the HTTP surface is enabled, else "quit".
func DefaultPolicy(httpEnabled bool) IOErrorPolicy {
	if httpEnabled {
		return PolicyNext
	}
	return PolicyQuit
}

// HardFaultBackoff is the unit of the delay before retrying after a
// printer hard fault (transport open failed), giving USB time to
// re-enumerate: linkengine.Serve waits this many times the number of
// consecutive hard faults, counting at most 4.
const HardFaultBackoff = 5 * time.Second

// Queue sequences job sources: CLI-seeded paths, directory-watch
// discoveries, and the standard-input sentinel "-".
type Queue struct {
	seeded  *fifo.FIFO[string]
	watcher *dirwatch.Watcher
	policy  IOErrorPolicy
}

// New creates a Queue. seeds are CLI positional source paths and/or
// directories; a directory among them is registered with the watcher
// instead of being queued directly, matching marlinfeed.cpp's treatment
// of directory arguments as watch roots rather than one-shot files.
func New(seeds []string, isDir func(string) bool, policy IOErrorPolicy) *Queue {
	q := &Queue{
		seeded:  fifo.New[string](),
		watcher: dirwatch.New(),
		policy:  policy,
	}
	for _, s := range seeds {
		if s != "-" && isDir != nil && isDir(s) {
			q.watcher.AddDir(s, false)
			continue
		}
		q.seeded.Put(s)
	}
	return q
}

// Policy returns the configured ioerror policy.
func (q *Queue) Policy() IOErrorPolicy { return q.policy }

// hasGCodeExtension mirrors marlinfeed.cpp's gcode_extension filter used
// on directory-watch discoveries (CLI-seeded paths are trusted verbatim,
// including "-" for stdin).
func hasGCodeExtension(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gcode")
}

// Next returns the next source path to feed into the Protocol Engine, or
// ok=false if nothing is currently available (the caller should poll
// again after the directory watcher's debounce window, or exit if Empty()
// is also true).
func (q *Queue) Next() (string, bool) {
	if !q.seeded.Empty() {
		return q.seeded.Get(), true
	}
	// Refill hands each ripe path over only once: the first .gcode path is
	// returned now and the rest are queued behind it.
	next, found := "", false
	for _, path := range q.watcher.Refill() {
		if !hasGCodeExtension(path) {
			continue
		}
		if !found {
			next, found = path, true
			continue
		}
		q.seeded.Put(path)
	}
	return next, found
}

// Empty reports whether the queue has no chance of ever producing another
// source: nothing seeded and the watcher has nothing left to watch or age.
func (q *Queue) Empty() bool {
	return q.seeded.Empty() && q.watcher.Empty()
}

// Touch schedules an uploaded file for pickup by registering it as a
// one-shot watch target, the Go equivalent of marlinfeed.cpp's
// touch_file() refreshing an mtime so the directory watcher's debounce
// picks it up naturally.
func (q *Queue) Touch(path string) {
	q.watcher.AddDir(filepath.Dir(path), true)
}
