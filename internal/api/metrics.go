package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/brightsync/internal/controller"
	"github.com/nerrad567/brightsync/internal/monitor"
	"github.com/nerrad567/brightsync/internal/process"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Monitors      MonitorMetrics   `json:"monitors"`
	Names         NameMetrics      `json:"names"`
	Controller    controller.Stats `json:"controller"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	Processes     []process.Stats  `json:"processes,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// MonitorMetrics summarises the registry.
type MonitorMetrics struct {
	Total       int  `json:"total"`
	Targets     int  `json:"targets"`
	Unavailable int  `json:"unavailable"`
	MaxTargets  int  `json:"max_targets"`
	Scanning    bool `json:"scanning"`
}

// NameMetrics summarises the name cache.
type NameMetrics struct {
	Count    int `json:"count"`
	MaxCount int `json:"max_count"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Monitors:   s.monitorMetrics(),
		Controller: s.ctrl.Stats(),
		Names: NameMetrics{
			Count:    s.ctrl.Names().Len(),
			MaxCount: s.ctrl.Names().MaxCount(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Enabled:   true,
			Connected: s.mqtt.IsConnected(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if s.processes != nil {
		metrics.Processes = s.processes()
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) monitorMetrics() MonitorMetrics {
	registry := s.ctrl.Registry()
	m := MonitorMetrics{
		MaxTargets: registry.MaxTargets(),
		Scanning:   s.ctrl.IsScanning(),
	}
	for _, snap := range registry.Snapshot() {
		m.Total++
		if snap.IsTarget {
			m.Targets++
		}
		if snap.Brightness == monitor.BrightnessUnavailable {
			m.Unavailable++
		}
	}
	return m
}
