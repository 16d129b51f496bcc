// Package dedupe tracks interaction ids so a retried client step is applied
// at most once.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen interaction ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a step that failed can be retried with it.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id  string
	seq uint64
}

// inMemoryDeduper keeps at most maxSize ids and evicts the oldest first.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // id -> insertion sequence
	queue   []entry           // insertion order; may hold stale entries of unrecorded ids
	next    uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: 50000}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.next++
	d.seen[id] = d.next
	if d.maxSize <= 0 {
		return false
	}

	d.queue = append(d.queue, entry{id: id, seq: d.next})
	for len(d.seen) > d.maxSize && len(d.queue) > 0 {
		oldest := d.queue[0]
		d.queue = d.queue[1:]
		if d.live(oldest) {
			delete(d.seen, oldest.id)
		}
	}
	if len(d.queue) > 2*d.maxSize {
		d.compact()
	}
	return false
}

func (d *inMemoryDeduper) live(e entry) bool {
	seq, ok := d.seen[e.id]
	return ok && seq == e.seq
}

// compact drops stale queue entries. Caller holds d.mu.
func (d *inMemoryDeduper) compact() {
	kept := make([]entry, 0, len(d.seen))
	for _, e := range d.queue {
		if d.live(e) {
			kept = append(kept, e)
		}
	}
	d.queue = kept
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
