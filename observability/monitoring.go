// Package observability aggregates runtime metrics for the ops surface.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RuntimeStats is the point-in-time view served by /ops/stats.
type RuntimeStats struct {
	NotificationConnections int     `json:"notification_connections"`
	CommentRooms            int     `json:"comment_rooms"`
	RoomMembers             int     `json:"room_members"`
	BusDropped              uint64  `json:"bus_dropped"`
	EventsPumped            uint64  `json:"events_pumped"`
	CommentsStored          uint64  `json:"comments_stored"`
	AllocMemMb              uint64  `json:"alloc_mem_mb"`
	NumGC                   uint32  `json:"num_gc"`
	ProcessRssBytes         uint64  `json:"process_rss_bytes"`
	ProcessCPUPercent       float64 `json:"process_cpu_percent"`
	ProcessStatus           string  `json:"process_status"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// MonitoringManager keeps cheap atomic counters fed by the pumps and a
// periodically refreshed snapshot assembled by the health worker.
type MonitoringManager struct {
	log *slog.Logger

	eventsPumped   atomic.Uint64
	commentsStored atomic.Uint64

	mu     sync.RWMutex
	latest RuntimeStats
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) IncrEventsPumped() {
	mm.eventsPumped.Add(1)
}

func (mm *MonitoringManager) IncrCommentsStored() {
	mm.commentsStored.Add(1)
}

// Refresh merges the gauges collected by the health worker with the
// cumulative counters and the Go memory stats.
func (mm *MonitoringManager) Refresh(connections, rooms, members int, busDropped uint64, rss uint64, cpu float64, status string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latest = RuntimeStats{
		NotificationConnections: connections,
		CommentRooms:            rooms,
		RoomMembers:             members,
		BusDropped:              busDropped,
		EventsPumped:            mm.eventsPumped.Load(),
		CommentsStored:          mm.commentsStored.Load(),
		AllocMemMb:              m.Alloc / 1024 / 1024,
		NumGC:                   m.NumGC,
		ProcessRssBytes:         rss,
		ProcessCPUPercent:       cpu,
		ProcessStatus:           status,
		UpdatedAt:               time.Now().UTC(),
	}

	mm.log.Debug("Runtime stats refreshed",
		"connections", connections,
		"rooms", rooms,
		"members", members,
		"bus_dropped", busDropped,
		"mem_mb", mm.latest.AllocMemMb)
}

func (mm *MonitoringManager) GetLatest() RuntimeStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latest
}
