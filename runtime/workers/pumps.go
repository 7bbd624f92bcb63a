package workers

import (
	"context"
	"log/slog"

	"blog-lab/bus"
	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/observability"
	"blog-lab/repositories"
)

// Broadcaster is the slice of a hub the pumps need.
type Broadcaster interface {
	Broadcast(evt event.DomainEvent)
}

// NotificationPump drains the workflow topic into the notification hub.
// Subscribing inside Run means a restart after a crash resubscribes
// cleanly instead of reusing a dead channel.
type NotificationPump struct {
	log        *slog.Logger
	bus        *bus.Bus
	hub        Broadcaster
	monitoring *observability.MonitoringManager
}

func NewNotificationPump(log *slog.Logger, b *bus.Bus, hub Broadcaster, monitoring *observability.MonitoringManager) *NotificationPump {
	return &NotificationPump{log: log, bus: b, hub: hub, monitoring: monitoring}
}

func (w *NotificationPump) Run(ctx context.Context) error {
	events, cancel := w.bus.Subscribe(bus.TopicWorkflow)
	defer cancel()
	w.log.Info("Notification pump started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			w.hub.Broadcast(evt)
			w.monitoring.IncrEventsPumped()
		}
	}
}

// CommentPump persists broadcast comments. Delivery to members already
// happened in the room; a storage error here loses history, not the live
// conversation, so it is logged and the pump moves on.
type CommentPump struct {
	log        *slog.Logger
	bus        *bus.Bus
	comments   repositories.ICommentRepository
	monitoring *observability.MonitoringManager
}

func NewCommentPump(log *slog.Logger, b *bus.Bus, comments repositories.ICommentRepository, monitoring *observability.MonitoringManager) *CommentPump {
	return &CommentPump{log: log, bus: b, comments: comments, monitoring: monitoring}
}

func (w *CommentPump) Run(ctx context.Context) error {
	events, cancel := w.bus.Subscribe(bus.TopicComments)
	defer cancel()
	w.log.Info("Comment pump started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			posted, ok := evt.(event.CommentPosted)
			if !ok {
				w.log.Warn("Unexpected event on comments topic", "kind", string(evt.EventKind()))
				continue
			}
			err := w.comments.StoreComment(ctx, domain.Comment{
				ID:        posted.Comment,
				PostID:    posted.Post,
				AuthorID:  posted.Author,
				Content:   posted.Content,
				Lang:      posted.Lang,
				Seq:       posted.Seq,
				CreatedAt: posted.At,
			})
			if err != nil {
				w.log.Error("Failed to persist comment",
					"post", posted.Post.String(),
					"seq", posted.Seq,
					"err", err)
				continue
			}
			w.monitoring.IncrCommentsStored()
		}
	}
}
