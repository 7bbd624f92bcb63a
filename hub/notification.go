package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/google/uuid"
)

// NotificationHub pushes workflow events to every connected admin and
// approver session. There is no author scoping: every connected reviewer
// sees all pending-queue activity. Per connection the delivery order is
// the engine's sequence order; across connections there is no lockstep.
type NotificationHub struct {
	mu         sync.RWMutex
	log        *slog.Logger
	store      repositories.IPostRepository
	sessions   map[uuid.UUID]*Session
	bufferSize int
	closed     bool
}

func NewNotificationHub(log *slog.Logger, store repositories.IPostRepository, bufferSize int) *NotificationHub {
	return &NotificationHub{
		log:        log,
		store:      store,
		sessions:   make(map[uuid.UUID]*Session),
		bufferSize: bufferSize,
	}
}

// Connect registers a reviewer session. The pending-queue snapshot is
// delivered synchronously, under the registry lock, before the session
// can see any live event: a post decided after the snapshot query will
// still reach the session as a live event, so clients deduplicate on
// (post, seq).
func (h *NotificationHub) Connect(ctx context.Context, userID uuid.UUID, role domain.Role) (*Session, error) {
	if !role.CanApprove() {
		return nil, fmt.Errorf("%w: role %s cannot subscribe to approval notifications", errors.ErrUnauthorized, role)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.ErrHubClosed
	}

	pending, _, err := h.store.ListByStatus(ctx, domain.StatusPending, 0, nil)
	if err != nil {
		return nil, err
	}
	snapshot := event.PendingSnapshot{At: time.Now().UTC()}
	for _, post := range pending {
		snapshot.Entries = append(snapshot.Entries, event.PendingEntry{
			Post:   post.ID,
			Title:  post.Title,
			Author: post.AuthorID,
		})
	}

	sess := NewSession(userID, role, h.bufferSize)
	if err := sess.Consume(snapshot); err != nil {
		return nil, fmt.Errorf("snapshot larger than session buffer: %w", err)
	}
	h.sessions[sess.ID] = sess

	h.log.Info("Reviewer connected to notification hub",
		"connection", sess.ID.String(),
		"user", userID.String(),
		"pending", len(snapshot.Entries),
		"connections", len(h.sessions))
	return sess, nil
}

// Broadcast fans the event out to every live session. A session whose
// queue is full is evicted; the others are unaffected.
func (h *NotificationHub) Broadcast(evt event.DomainEvent) {
	var dead []uuid.UUID

	h.mu.RLock()
	for id, sess := range h.sessions {
		if err := sess.Consume(evt); err != nil {
			dead = append(dead, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range dead {
		h.log.Warn("Evicting slow notification consumer", "connection", id.String())
		h.Disconnect(id)
	}
}

// Disconnect is idempotent, releases the session's registry entry, and is
// safe to call concurrently with an in-flight Broadcast.
func (h *NotificationHub) Disconnect(connID uuid.UUID) {
	h.mu.Lock()
	sess, ok := h.sessions[connID]
	if ok {
		delete(h.sessions, connID)
	}
	remaining := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return
	}
	sess.Close()
	h.log.Info("Notification connection closed",
		"connection", connID.String(),
		"connections", remaining)
}

// EvictIdle disconnects sessions that have not accepted a delivery
// (heartbeats included) within timeout. Returns the evicted ids.
func (h *NotificationHub) EvictIdle(timeout time.Duration) []uuid.UUID {
	cutoff := time.Now().Add(-timeout)

	var idle []uuid.UUID
	h.mu.RLock()
	for id, sess := range h.sessions {
		if sess.LastDelivery().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range idle {
		h.log.Warn("Evicting idle notification connection", "connection", id.String())
		h.Disconnect(id)
	}
	return idle
}

func (h *NotificationHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown sends the terminal event everywhere, lets queues flush until
// the deadline, then force-closes every session. New connects are refused
// from the first moment.
func (h *NotificationHub) Shutdown(flushDeadline time.Duration) {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[uuid.UUID]*Session)
	h.mu.Unlock()

	closing := event.ServerClosing{At: time.Now().UTC()}
	for _, sess := range sessions {
		_ = sess.Consume(closing)
	}

	deadline := time.Now().Add(flushDeadline)
	for _, sess := range sessions {
		for sess.QueueLen() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		sess.Close()
	}
	h.log.Info("Notification hub shut down", "connections_closed", len(sessions))
}
