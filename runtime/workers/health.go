package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"blog-lab/bus"
	"blog-lab/hub"
	"blog-lab/observability"

	"github.com/shirou/gopsutil/process"
)

// HealthWorker samples the server's own process metrics and the hub
// gauges into the monitoring manager for /ops/stats.
type HealthWorker struct {
	log        *slog.Logger
	interval   time.Duration
	hub        *hub.NotificationHub
	rooms      *hub.RoomRegistry
	bus        *bus.Bus
	monitoring *observability.MonitoringManager
}

func NewHealthWorker(log *slog.Logger, interval time.Duration, notifications *hub.NotificationHub, rooms *hub.RoomRegistry, b *bus.Bus, monitoring *observability.MonitoringManager) *HealthWorker {
	return &HealthWorker{
		log:        log,
		interval:   interval,
		hub:        notifications,
		rooms:      rooms,
		bus:        b,
		monitoring: monitoring,
	}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	w.log.Info("Health worker started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			roomStats := w.rooms.Stats()
			w.monitoring.Refresh(
				w.hub.ConnectionCount(),
				roomStats.Rooms,
				roomStats.Members,
				w.bus.Dropped(),
				rss, cpu, status,
			)
		}
	}
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
