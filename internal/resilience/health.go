package resilience

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Latency   time.Duration          `json:"latency_ns"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheck checks one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// HealthChecker runs registered checks on demand.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]HealthCheck
	timeout    time.Duration
	startTime  time.Time
}

// NewHealthChecker creates a checker whose checks share timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		components: make(map[string]HealthCheck),
		timeout:    timeout,
		startTime:  time.Now(),
	}
}

// Register adds or replaces the check for a component.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = check
}

// SystemHealth represents overall system health.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	Components []ComponentHealth `json:"components"`
	Goroutines int               `json:"goroutines"`
	MemoryMB   uint64            `json:"memory_alloc_mb"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Check runs every component check concurrently. The overall status is the
// worst component status.
func (h *HealthChecker) Check(ctx context.Context) SystemHealth {
	h.mu.RLock()
	components := make(map[string]HealthCheck, len(h.components))
	for k, v := range h.components {
		components[k] = v
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan ComponentHealth, len(components))
	for name, check := range components {
		wg.Add(1)
		go func(n string, c HealthCheck) {
			defer wg.Done()
			results <- runCheck(ctx, n, c)
		}(name, check)
	}
	wg.Wait()
	close(results)

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now().UTC(),
	}
	for r := range results {
		health.Components = append(health.Components, r)
		switch {
		case r.Status == HealthStatusUnhealthy:
			health.Status = HealthStatusUnhealthy
		case r.Status == HealthStatusDegraded && health.Status == HealthStatusHealthy:
			health.Status = HealthStatusDegraded
		}
	}
	sort.Slice(health.Components, func(i, j int) bool {
		return health.Components[i].Name < health.Components[j].Name
	})

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	health.MemoryMB = memStats.Alloc / 1024 / 1024
	return health
}

func runCheck(ctx context.Context, name string, check HealthCheck) (health ComponentHealth) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			health = ComponentHealth{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("check panicked: %v", r),
			}
		}
		health.Name = name
		health.LastCheck = time.Now()
		if health.Latency == 0 {
			health.Latency = time.Since(start)
		}
	}()
	return check(ctx)
}

// DatabaseHealthCheck creates a health check for database connections.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		var health ComponentHealth

		start := time.Now()
		err := ping(ctx)
		health.Latency = time.Since(start)

		if err != nil {
			health.Status = HealthStatusUnhealthy
			health.Message = fmt.Sprintf("Database ping failed: %v", err)
			return health
		}

		if health.Latency > 100*time.Millisecond {
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("Database slow: %v", health.Latency)
			return health
		}

		health.Status = HealthStatusHealthy
		return health
	}
}

// BreakerHealthCheck reports an open breaker as degraded: callers still
// have a fallback, only the guarded dependency is unavailable.
func BreakerHealthCheck(cb *CircuitBreaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		stats := cb.Stats()
		health := ComponentHealth{
			Status: HealthStatusHealthy,
			Details: map[string]interface{}{
				"state":        string(stats.State),
				"failures":     stats.CurrentFailures,
				"rejected":     stats.TotalRejected,
				"failure_rate": stats.FailureRate(),
			},
		}
		if stats.State != CircuitClosed {
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("circuit %s", stats.State)
		}
		return health
	}
}
