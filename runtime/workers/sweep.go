package workers

import (
	"context"
	"log/slog"
	"time"

	"blog-lab/hub"
)

// SweepWorker periodically evicts idle connections from both hubs and
// tears down comment rooms that outlived their grace period.
type SweepWorker struct {
	log         *slog.Logger
	interval    time.Duration
	idleTimeout time.Duration
	roomGrace   time.Duration
	hub         *hub.NotificationHub
	rooms       *hub.RoomRegistry
}

func NewSweepWorker(log *slog.Logger, interval, idleTimeout, roomGrace time.Duration, notifications *hub.NotificationHub, rooms *hub.RoomRegistry) *SweepWorker {
	return &SweepWorker{
		log:         log,
		interval:    interval,
		idleTimeout: idleTimeout,
		roomGrace:   roomGrace,
		hub:         notifications,
		rooms:       rooms,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info("Sweep worker started",
		"interval", w.interval.String(),
		"idle_timeout", w.idleTimeout.String(),
		"room_grace", w.roomGrace.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			evicted := len(w.hub.EvictIdle(w.idleTimeout))
			evicted += w.rooms.EvictIdle(w.idleTimeout)
			swept := w.rooms.SweepEmpty(w.roomGrace)
			if evicted > 0 || swept > 0 {
				w.log.Info("Sweep pass finished", "evicted", evicted, "rooms_swept", swept)
			}
		}
	}
}
