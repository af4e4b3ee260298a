package monitoring

import (
	"context"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check result
type HealthCheck struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
	DurationMS  int64        `json:"duration_ms"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// HealthChecker runs one component check
type HealthChecker func(ctx context.Context) error

// HealthManager manages health checks
type HealthManager struct {
	serviceName    string
	serviceVersion string
	checkers       map[string]HealthChecker
	mu             sync.RWMutex
	timeout        time.Duration
}

// NewHealthManager creates a new health manager
func NewHealthManager(serviceName, serviceVersion string) *HealthManager {
	return &HealthManager{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		checkers:       make(map[string]HealthChecker),
		timeout:        5 * time.Second,
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// CheckHealth performs all health checks and returns a report
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	timeout := hm.timeout
	hm.mu.RUnlock()

	report := &HealthReport{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Service:   hm.serviceName,
		Version:   hm.serviceVersion,
		Checks:    make([]HealthCheck, 0, len(checkers)),
	}

	for name, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := checker(checkCtx)
		cancel()

		check := HealthCheck{
			Name:        name,
			Status:      HealthStatusHealthy,
			LastChecked: time.Now().UTC(),
			DurationMS:  time.Since(start).Milliseconds(),
		}
		if err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = err.Error()
			report.Status = HealthStatusUnhealthy
		}

		report.Checks = append(report.Checks, check)
	}

	return report
}
