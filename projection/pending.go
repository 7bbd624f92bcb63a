// Package projection builds local read models from observed events.
// It handles ordering and deduplication on the consumer side and never
// emits events itself.
package projection

import (
	"blog-lab/domain/event"

	"github.com/google/uuid"
)

type seenKey struct {
	post uuid.UUID
	seq  uint64
}

// PendingQueue is the reviewer-side view of the approval queue. It is fed
// the connect-time snapshot followed by live events; because a post can
// appear in both, every (post, seq) pair is consumed at most once.
type PendingQueue struct {
	order   []uuid.UUID
	entries map[uuid.UUID]event.PendingEntry
	seen    map[seenKey]struct{}
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		entries: make(map[uuid.UUID]event.PendingEntry),
		seen:    make(map[seenKey]struct{}),
	}
}

// Consume applies one event to the queue. Events it does not understand
// are ignored, so the whole notification stream can be fed through it.
func (q *PendingQueue) Consume(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.PendingSnapshot:
		for _, entry := range evt.Entries {
			if q.mark(entry.Post, entry.Seq) {
				q.add(entry)
			}
		}
	case event.PostSubmitted:
		if q.mark(evt.Post, evt.Seq) {
			q.add(event.PendingEntry{
				Post:   evt.Post,
				Title:  evt.Title,
				Author: evt.Author,
				Seq:    evt.Seq,
			})
		}
	case event.PostDecided:
		if q.mark(evt.Post, evt.Seq) {
			q.remove(evt.Post)
		}
	}
}

// Entries returns the pending posts in the order they were first seen.
func (q *PendingQueue) Entries() []event.PendingEntry {
	out := make([]event.PendingEntry, 0, len(q.entries))
	for _, post := range q.order {
		if entry, ok := q.entries[post]; ok {
			out = append(out, entry)
		}
	}
	return out
}

func (q *PendingQueue) Len() int {
	return len(q.entries)
}

// mark records a (post, seq) pair and reports whether it was new.
func (q *PendingQueue) mark(post uuid.UUID, seq uint64) bool {
	key := seenKey{post: post, seq: seq}
	if _, dup := q.seen[key]; dup {
		return false
	}
	q.seen[key] = struct{}{}
	return true
}

func (q *PendingQueue) add(entry event.PendingEntry) {
	if _, known := q.entries[entry.Post]; !known {
		q.order = append(q.order, entry.Post)
	}
	q.entries[entry.Post] = entry
}

func (q *PendingQueue) remove(post uuid.UUID) {
	delete(q.entries, post)
}
