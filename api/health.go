package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	apimiddleware "github.com/0xmhha/algoland-api/api/middleware"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DetailedHealth provides health information for the service and its dependencies
type DetailedHealth struct {
	Status       string             `json:"status"`
	Service      string             `json:"service"`
	Timestamp    string             `json:"timestamp"`
	Uptime       string             `json:"uptime"`
	Dependencies []DependencyHealth `json:"dependencies,omitempty"`
}

// DependencyHealth represents health of an external dependency
type DependencyHealth struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
	Critical bool   `json:"critical"`
}

type dependency struct {
	pinger   Pinger
	critical bool
}

// HealthChecker tracks the dependencies reported by /health/detailed
type HealthChecker struct {
	mu        sync.RWMutex
	service   string
	startTime time.Time
	deps      map[string]dependency
	timeout   time.Duration
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(service string) *HealthChecker {
	return &HealthChecker{
		service:   service,
		startTime: time.Now(),
		deps:      make(map[string]dependency),
		timeout:   5 * time.Second,
	}
}

// Register adds a dependency. A failing critical dependency makes the service
// unhealthy; a failing non-critical one only degrades it.
func (hc *HealthChecker) Register(name string, p Pinger, critical bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.deps[name] = dependency{pinger: p, critical: critical}
}

// GetDetailedHealth pings every registered dependency
func (hc *HealthChecker) GetDetailedHealth(ctx context.Context) DetailedHealth {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.deps))
	for name := range hc.deps {
		names = append(names, name)
	}
	deps := make(map[string]dependency, len(hc.deps))
	for k, v := range hc.deps {
		deps[k] = v
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	health := DetailedHealth{
		Status:    "healthy",
		Service:   hc.service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(hc.startTime).Round(time.Second).String(),
	}

	for _, name := range names {
		dep := deps[name]
		pingCtx, cancel := context.WithTimeout(ctx, hc.timeout)
		start := time.Now()
		err := dep.pinger.Ping(pingCtx)
		cancel()

		entry := DependencyHealth{
			Name:     name,
			Status:   "healthy",
			Latency:  time.Since(start).String(),
			Critical: dep.critical,
		}
		if err != nil {
			entry.Status = "unhealthy"
			entry.Message = err.Error()
			if dep.critical {
				health.Status = "unhealthy"
			} else if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
		health.Dependencies = append(health.Dependencies, entry)
	}

	return health
}

// LivenessHandler returns 200 while the process is alive
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}

// DetailedHealthHandler returns a handler for dependency health checks
func (hc *HealthChecker) DetailedHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hc.GetDetailedHealth(r.Context())

		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		apimiddleware.WriteJSON(w, status, health)
	}
}
