package workers

import (
	"context"
	"log/slog"
	"time"

	"blog-lab/domain/event"
)

// HeartbeatWorker pushes a heartbeat through every hub connection.
// Heartbeats share the bounded queue with real events, so a consumer that
// stops draining fails its heartbeats, stops advancing its delivery
// timestamp and gets picked up by the idle sweep.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	targets  []Broadcaster
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration, targets ...Broadcaster) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, interval: interval, targets: targets}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Heartbeat worker started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			beat := event.Heartbeat{At: time.Now().UTC()}
			for _, target := range w.targets {
				target.Broadcast(beat)
			}
		}
	}
}
