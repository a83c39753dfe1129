// Package ringbuf provides a bounded overwrite-oldest ring of signal
// verdicts, used as the in-memory signal history exposed to external
// inspection. Writers never block; once full, each push evicts the
// oldest entry.
package ringbuf

import (
	"sync"

	"signals-systemv1/internal/model"
)

// Ring is a fixed-capacity verdict history. Safe for concurrent use.
type Ring struct {
	mu    sync.RWMutex
	buf   []model.Verdict
	start int // index of the oldest entry
	count int
}

// New creates a ring with the given capacity (minimum 1).
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.Verdict, capacity)}
}

// Push appends a verdict, evicting the oldest entry when full.
func (r *Ring) Push(v model.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Snapshot returns the stored verdicts oldest-first.
func (r *Ring) Snapshot() []model.Verdict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Verdict, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Recent returns up to n of the newest verdicts, oldest-first.
func (r *Ring) Recent(n int) []model.Verdict {
	snap := r.Snapshot()
	if n >= len(snap) {
		return snap
	}
	return snap[len(snap)-n:]
}

// Len returns the number of stored verdicts.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }
