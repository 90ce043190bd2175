package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/blue-hydra/internal/device"
	"github.com/nerrad567/blue-hydra/internal/scanner"
)

// StatsResponse is the /stats payload.
type StatsResponse struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Devices       device.Stats   `json:"devices"`
	Pipeline      *scanner.Stats `json:"pipeline,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains signal hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	Broadcast        uint64 `json:"broadcast"`
	Dropped          uint64 `json:"dropped"`
}

// handleStats returns tracker, pipeline and runtime counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	broadcast, dropped := s.hub.Counters()
	resp := StatsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			Broadcast:        broadcast,
			Dropped:          dropped,
		},
		Devices: s.catalog.Stats(),
	}
	if s.pipeline != nil {
		stats := s.pipeline.Stats()
		resp.Pipeline = &stats
	}

	writeJSON(w, http.StatusOK, resp)
}
