// Package history implements the supplemented job-history feature
// (SPEC_FULL.md component M): a bounded, in-memory ring of completed or
// failed jobs, exposed read-only via the marlinfeed-specific
// /api/marlinfeed/history endpoint.
//
// Grounded on the teacher's pkg/moonraker/history.go's HistoryManager
// (job-record shape, most-recent-first ordering), adapted from a
// key/value job map with unbounded retention to a fixed-capacity ring,
// since SPEC_FULL.md calls for a *bounded* record rather than an
// append-only database (spec.md's Non-goals exclude persistent job
// storage; this is in-memory and capped).
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one completed or failed job.
type Record struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"fileName"`
	Success   bool      `json:"success"`
	Reason    string     `json:"reason,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// Ring is a fixed-capacity, most-recent-first job history.
type Ring struct {
	mu       sync.Mutex
	capacity int
	records  []Record // records[0] is the most recent
}

// New creates a Ring holding at most capacity records (16 if <= 0).
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 16
	}
	return &Ring{capacity: capacity}
}

// Record appends a finished job, evicting the oldest entry if full.
func (r *Ring) Record(fileName string, success bool, reason string, startedAt, endedAt time.Time) Record {
	rec := Record{
		ID:        uuid.New(),
		FileName:  fileName,
		Success:   success,
		Reason:    reason,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append([]Record{rec}, r.records...)
	if len(r.records) > r.capacity {
		r.records = r.records[:r.capacity]
	}
	return rec
}

// List returns a copy of the current records, most recent first.
func (r *Ring) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
