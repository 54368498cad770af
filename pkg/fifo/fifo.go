// Package fifo implements the ordered-queue-with-filter pattern from
// spec.md §9 Design Notes ("FIFO of owned strings"): a single-producer/
// single-consumer queue of owned values with O(1) enqueue/dequeue plus an
// "iterate and optionally remove" filter, translated from the source's
// intrusive linked-list-of-raw-pointers FIFO (original_source/src/fifo.h)
// into a plain Go slice-backed queue with move-on-pop semantics — no raw
// pointers escape a Go slice, so the ownership-transfer machinery the
// original needs has no idiomatic equivalent to add.
package fifo

// FIFO is an ordered queue of T. Not safe for concurrent use.
type FIFO[T any] struct {
	items []T
}

// New creates an empty FIFO.
func New[T any]() *FIFO[T] {
	return &FIFO[T]{}
}

// Put appends v to the tail.
func (f *FIFO[T]) Put(v T) {
	f.items = append(f.items, v)
}

// Get removes and returns the oldest element. Panics if empty; callers
// must check Empty() first, matching the original's caller-checks-first
// contract.
func (f *FIFO[T]) Get() T {
	v := f.items[0]
	f.items = f.items[1:]
	return v
}

// Empty reports whether the queue has no elements.
func (f *FIFO[T]) Empty() bool { return len(f.items) == 0 }

// Size returns the number of queued elements.
func (f *FIFO[T]) Size() int { return len(f.items) }

// Filter keeps only elements for which keep returns true, visited oldest
// to newest, in place — the Go rendering of the original's filter()
// method (which additionally makes the caller free discarded memory; Go's
// GC removes that need).
func (f *FIFO[T]) Filter(keep func(T) bool) {
	kept := f.items[:0]
	for _, v := range f.items {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	f.items = kept
}

// Visit calls fn on every element, oldest to newest, stopping early if fn
// returns false.
func (f *FIFO[T]) Visit(fn func(T) bool) {
	for _, v := range f.items {
		if !fn(v) {
			return
		}
	}
}
