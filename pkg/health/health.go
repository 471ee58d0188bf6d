// Package health exposes the relay's runtime health snapshot.
package health

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// ServerHealth represents overall server health
type ServerHealth struct {
	Status          Status            `json:"status"`
	Uptime          int64             `json:"uptime_seconds"`
	Timestamp       time.Time         `json:"timestamp"`
	Connections     int               `json:"connections"`
	Presences       int               `json:"presences"`
	Goroutines      int               `json:"goroutines"`
	MemoryMB        uint64            `json:"memory_mb"`
	HostCPUPercent  float64           `json:"host_cpu_percent"`
	HostMemPercent  float64           `json:"host_mem_percent"`
	Components      []ComponentHealth `json:"components,omitempty"`
}

// Monitor tracks server health metrics
type Monitor struct {
	startTime  time.Time
	mu         sync.RWMutex
	components map[string]*ComponentHealth
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:  time.Now(),
		components: make(map[string]*ComponentHealth),
	}
}

// SetComponentStatus updates the status of a component
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
	}
}

// GetHealth returns the current server health. Host metrics are
// best-effort and left at zero when the platform refuses them.
func (m *Monitor) GetHealth(connections, presences int) *ServerHealth {
	m.mu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overallStatus := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	m.mu.RUnlock()

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	healthSnapshot := &ServerHealth{
		Status:      overallStatus,
		Uptime:      int64(time.Since(m.startTime).Seconds()),
		Timestamp:   time.Now(),
		Connections: connections,
		Presences:   presences,
		Goroutines:  runtime.NumGoroutine(),
		MemoryMB:    stats.Alloc / 1024 / 1024,
		Components:  components,
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		healthSnapshot.HostCPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		healthSnapshot.HostMemPercent = vm.UsedPercent
	}

	return healthSnapshot
}
