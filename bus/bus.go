// Package bus provides the in-process pub/sub decoupling event producers
// (workflow engine, comment submission) from distribution sinks.
//
// It provides best-effort fan-out: delivery to each current subscriber is
// at-least-once and preserves publish order per topic, but a subscriber
// whose buffer is full loses the event rather than blocking the publisher.
// The bus is not a message broker and keeps no history; late joiners must
// request a snapshot from the owning hub.
//
// Bus is safe for concurrent use by multiple goroutines.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"blog-lab/domain/event"
)

type Topic string

const (
	TopicWorkflow Topic = "workflow"
	TopicComments Topic = "comments"
)

type Bus struct {
	mu         sync.RWMutex
	log        *slog.Logger
	bufferSize int
	nextID     uint64
	subs       map[Topic]map[uint64]chan event.DomainEvent
	dropped    atomic.Uint64
}

func New(log *slog.Logger, bufferSize int) *Bus {
	return &Bus{
		log:        log,
		bufferSize: bufferSize,
		subs:       make(map[Topic]map[uint64]chan event.DomainEvent),
	}
}

// Publish delivers evt to every current subscriber of topic. Publishing to
// a topic with no subscribers is a no-op. The returned count is the number
// of subscribers whose buffer was full; the caller treats a non-zero value
// as degraded delivery, never as a failure.
func (b *Bus) Publish(topic Topic, evt event.DomainEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	droppedHere := 0
	for id, ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
			droppedHere++
			b.dropped.Add(1)
			b.log.Warn("Subscriber buffer full, event dropped",
				"topic", string(topic),
				"subscriber", id,
				"kind", string(evt.EventKind()))
		}
	}
	return droppedHere
}

// Subscribe registers a listener on topic and returns its channel plus a
// cancel function. Cancel is idempotent and closes the channel, so a
// consumer ranging over it terminates cleanly.
func (b *Bus) Subscribe(topic Topic) (<-chan event.DomainEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan event.DomainEvent, b.bufferSize)

	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[uint64]chan event.DomainEvent)
	}
	b.subs[topic][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[topic][id]; ok {
			delete(b.subs[topic], id)
			close(sub)
		}
	}
	return ch, cancel
}

// Dropped reports the total number of per-subscriber deliveries lost to
// backpressure since startup.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount reports the number of live subscriptions on topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
