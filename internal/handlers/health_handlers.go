package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency
type Check func(ctx context.Context) error

type dependency struct {
	name     string
	check    Check
	critical bool
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	deps    []dependency
	version string
	started time.Time
	timeout time.Duration
}

func NewHealthHandlers(version string) *HealthHandlers {
	return &HealthHandlers{version: version, started: time.Now(), timeout: 2 * time.Second}
}

// Register adds a dependency. Critical dependencies gate readiness.
func (h *HealthHandlers) Register(name string, check Check, critical bool) *HealthHandlers {
	h.deps = append(h.deps, dependency{name: name, check: check, critical: critical})
	return h
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Services   map[string]string `json:"services"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
	Goroutines int               `json:"goroutines"`
}

func (h *HealthHandlers) probe(ctx context.Context) (map[string]error, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]error, len(h.deps))
	ready := true
	for _, dep := range h.deps {
		err := dep.check(ctx)
		results[dep.name] = err
		if err != nil && dep.critical {
			ready = false
		}
	}
	return results, ready
}

// HealthCheck reports every dependency. Degraded optional services still return 200.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	results, ready := h.probe(c.Request().Context())
	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   make(map[string]string, len(results)),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if results[name] != nil {
			health.Services[name] = "unhealthy"
			health.Status = "degraded"
		} else {
			health.Services[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if !ready {
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	if _, ready := h.probe(c.Request().Context()); !ready {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Critical services unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

// LivenessCheck determines if the application is running
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
