package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LatencyMS   int64        `json:"latency_ms"`
	LastChecked time.Time    `json:"last_checked"`
	Details     interface{}  `json:"details,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Service    string                     `json:"service"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	System     SystemInfo                 `json:"system"`
}

// SystemInfo represents process-level information
type SystemInfo struct {
	Goroutines int    `json:"goroutines"`
	CPUCount   int    `json:"cpu_count"`
	GoVersion  string `json:"go_version"`
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
}

// ProbeFunc checks one dependency
type ProbeFunc func(ctx context.Context) error

type healthCheck struct {
	probe        ProbeFunc
	details      func() interface{}
	degradeAfter time.Duration
}

// HealthChecker runs registered dependency probes
type HealthChecker struct {
	mu      sync.RWMutex
	service string
	version string
	timeout time.Duration
	checks  map[string]healthCheck
}

// NewHealthChecker creates a checker whose probes each get timeout
func NewHealthChecker(service, version string, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		service: service,
		version: version,
		timeout: timeout,
		checks:  make(map[string]healthCheck),
	}
}

// RegisterDatabaseCheck pings db and reports its pool stats
func (hc *HealthChecker) RegisterDatabaseCheck(name string, db *sql.DB) {
	hc.RegisterCheck(name, db.PingContext, time.Second, func() interface{} {
		stats := db.Stats()
		return map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"wait_count":       stats.WaitCount,
			"wait_duration":    stats.WaitDuration.String(),
		}
	})
}

// RegisterCheck adds a probe. A successful probe slower than degradeAfter
// reports degraded; details, if set, is attached to successful results.
func (hc *HealthChecker) RegisterCheck(name string, probe ProbeFunc, degradeAfter time.Duration, details func() interface{}) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = healthCheck{probe: probe, details: details, degradeAfter: degradeAfter}
}

func (hc *HealthChecker) runCheck(ctx context.Context, check healthCheck) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := check.probe(ctx)
	latency := time.Since(start)

	result := ComponentHealth{
		LatencyMS:   latency.Milliseconds(),
		LastChecked: time.Now(),
	}
	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Message = fmt.Sprintf("check failed: %v", err)
		return result
	}

	result.Status = HealthStatusHealthy
	result.Message = "ok"
	if check.degradeAfter > 0 && latency > check.degradeAfter {
		result.Status = HealthStatusDegraded
		result.Message = "slow response"
	}
	if check.details != nil {
		result.Details = check.details()
	}
	return result
}

// Check runs every probe concurrently and aggregates the worst status
func (hc *HealthChecker) Check(ctx context.Context) HealthResponse {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	checks := make(map[string]healthCheck, len(hc.checks))
	for name, c := range hc.checks {
		checks[name] = c
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check healthCheck) {
			defer wg.Done()
			results[i] = hc.runCheck(ctx, check)
		}(i, checks[name])
	}
	wg.Wait()

	overall := HealthStatusHealthy
	components := make(map[string]ComponentHealth, len(names))
	for i, name := range names {
		components[name] = results[i]
		switch results[i].Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return HealthResponse{
		Status:     overall,
		Service:    hc.service,
		Version:    hc.version,
		Timestamp:  time.Now(),
		Components: components,
		System: SystemInfo{
			Goroutines: runtime.NumGoroutine(),
			CPUCount:   runtime.NumCPU(),
			GoVersion:  runtime.Version(),
			HeapAlloc:  memStats.HeapAlloc,
		},
	}
}
