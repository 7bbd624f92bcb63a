// Package hub owns the live connection registries: the admin notification
// hub and the per-post comment rooms. Both share the Session type and its
// bounded-queue, drop-and-disconnect backpressure policy.
package hub

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/errors"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Consume when the session's outbound buffer
// is full. The owning hub reacts by evicting the session; the producer is
// never blocked.
var ErrQueueFull = fmt.Errorf("%w: session outbound queue full", errors.ErrDeliveryDegraded)

// Session is one live connection's outbound pipe. The transport layer
// drains Events() into the socket; hubs feed it through Consume. A
// Session is ephemeral: created on connect, gone on disconnect.
type Session struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Role   domain.Role

	queue        chan event.DomainEvent
	closed       chan struct{}
	closeOnce    sync.Once
	lastDelivery atomic.Int64
}

func NewSession(userID uuid.UUID, role domain.Role, bufferSize int) *Session {
	s := &Session{
		ID:     uuid.New(),
		UserID: userID,
		Role:   role,
		queue:  make(chan event.DomainEvent, bufferSize),
		closed: make(chan struct{}),
	}
	s.lastDelivery.Store(time.Now().UnixNano())
	return s
}

// Consume enqueues an event without ever blocking. A full queue means the
// consumer is not keeping up; the caller disconnects it.
func (s *Session) Consume(evt event.DomainEvent) error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	select {
	case s.queue <- evt:
		s.lastDelivery.Store(time.Now().UnixNano())
		return nil
	default:
		return ErrQueueFull
	}
}

// Events is drained by the connection's writer goroutine.
func (s *Session) Events() <-chan event.DomainEvent {
	return s.queue
}

// Done is closed exactly once, when the session is disconnected.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Close is idempotent and safe to call concurrently with an in-flight
// Consume. The queue channel itself is never closed; readers select on
// Done instead.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// LastDelivery is the time of the last successful enqueue. Heartbeats run
// through the queue, so a stalled consumer stops advancing this and the
// idle sweep evicts it.
func (s *Session) LastDelivery() time.Time {
	return time.Unix(0, s.lastDelivery.Load())
}

// QueueLen reports the number of undelivered events, used by the graceful
// shutdown flush.
func (s *Session) QueueLen() int {
	return len(s.queue)
}
