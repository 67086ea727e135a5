// Package health implements component health checks and the aggregate
// health, readiness, and liveness reports.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgeoinnovations-resources/Flight/db"
	"github.com/edgeoinnovations-resources/Flight/queue"
	"github.com/edgeoinnovations-resources/Flight/routedata"
	"github.com/edgeoinnovations-resources/Flight/worker"
)

// Status represents the health status of a component
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check represents a single health check
type Check struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthReport represents the overall health of the application
type HealthReport struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    time.Duration    `json:"uptime"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) Check
}

// DatasetChecker verifies a dataset snapshot is loaded. It is the readiness
// gate: the API cannot serve route queries before the first load completes.
type DatasetChecker struct {
	Store *routedata.Store
	Name  string
}

func (c *DatasetChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      c.Name,
		Timestamp: start,
		Details:   make(map[string]string),
	}
	check.Duration = time.Since(start)

	ds, err := c.Store.Current()
	if err != nil {
		check.Status = StatusDown
		check.Message = "No dataset snapshot loaded"
		return check
	}

	check.Status = StatusUp
	check.Message = "Dataset snapshot loaded"
	check.Details["version"] = ds.Version
	check.Details["loaded_at"] = ds.LoadedAt.Format(time.RFC3339)
	check.Details["routes"] = fmt.Sprintf("%d", ds.RouteCount())
	check.Details["airports"] = fmt.Sprintf("%d", ds.AirportCount())
	check.Details["age"] = time.Since(ds.LoadedAt).Round(time.Second).String()

	return check
}

// PostgresChecker checks PostgreSQL connectivity
type PostgresChecker struct {
	DB   *db.PostgresDB
	Name string
}

func (c *PostgresChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      c.Name,
		Timestamp: start,
		Details:   make(map[string]string),
	}

	err := c.DB.GetDB().PingContext(ctx)
	duration := time.Since(start)
	check.Duration = duration

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("Database connection failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "Database connection successful"
		check.Details["response_time"] = duration.String()
	}

	return check
}

// Neo4jChecker checks Neo4j connectivity
type Neo4jChecker struct {
	DB   *db.Neo4jDB
	Name string
}

func (c *Neo4jChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      c.Name,
		Timestamp: start,
		Details:   make(map[string]string),
	}

	err := c.DB.Ping(ctx)
	duration := time.Since(start)
	check.Duration = duration

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("Neo4j connection failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "Neo4j connection successful"
		check.Details["response_time"] = duration.String()
	}

	return check
}

// RedisChecker checks Redis connectivity
type RedisChecker struct {
	Client *redis.Client
	Name   string
}

func (c *RedisChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      c.Name,
		Timestamp: start,
		Details:   make(map[string]string),
	}

	pong, err := c.Client.Ping(ctx).Result()
	duration := time.Since(start)
	check.Duration = duration

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("Redis connection failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "Redis connection successful"
		check.Details["response_time"] = duration.String()
		check.Details["ping_response"] = pong
	}

	return check
}

// QueueChecker checks refresh queue connectivity and status
type QueueChecker struct {
	Queue queue.Queue
	Name  string
}

func (c *QueueChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      c.Name,
		Timestamp: start,
		Details:   make(map[string]string),
	}

	stats, err := c.Queue.GetQueueStats(ctx, worker.QueueDatasetRefresh)
	duration := time.Since(start)
	check.Duration = duration

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("Queue connectivity check failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "Queue is operational"
		check.Details["response_time"] = duration.String()
		if pending, ok := stats[queue.StatusPending]; ok {
			check.Details["pending_jobs"] = fmt.Sprintf("%d", pending)
		}
		if processing, ok := stats[queue.StatusProcessing]; ok {
			check.Details["processing_jobs"] = fmt.Sprintf("%d", processing)
		}
	}

	return check
}

// HealthChecker orchestrates multiple health checks
type HealthChecker struct {
	checkers  []Checker
	version   string
	startTime time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		checkers:  make([]Checker, 0),
		version:   version,
		startTime: time.Now(),
	}
}

// AddChecker adds a health checker
func (h *HealthChecker) AddChecker(checker Checker) {
	h.checkers = append(h.checkers, checker)
}

// CheckHealth performs all health checks
func (h *HealthChecker) CheckHealth(ctx context.Context) HealthReport {
	checks := make(map[string]Check)
	overallStatus := StatusUp

	for _, checker := range h.checkers {
		check := checker.Check(ctx)
		checks[check.Name] = check

		// If any check fails, overall status is down
		if check.Status == StatusDown {
			overallStatus = StatusDown
		}
	}

	return HealthReport{
		Status:    overallStatus,
		Version:   h.version,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(h.startTime),
	}
}

// CheckReadiness performs readiness checks: the dataset snapshot and the
// backing stores, skipping the queue which can lag without making the API
// unservable.
func (h *HealthChecker) CheckReadiness(ctx context.Context) HealthReport {
	checks := make(map[string]Check)
	overallStatus := StatusUp

	for _, checker := range h.checkers {
		switch checker.(type) {
		case *DatasetChecker, *PostgresChecker, *RedisChecker:
		default:
			continue
		}

		check := checker.Check(ctx)
		checks[check.Name] = check

		if check.Status == StatusDown {
			overallStatus = StatusDown
		}
	}

	return HealthReport{
		Status:    overallStatus,
		Version:   h.version,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(h.startTime),
	}
}

// CheckLiveness performs liveness checks (basic application health)
func (h *HealthChecker) CheckLiveness(ctx context.Context) HealthReport {
	return HealthReport{
		Status:    StatusUp,
		Version:   h.version,
		Timestamp: time.Now(),
		Checks: map[string]Check{
			"application": {
				Name:      "application",
				Status:    StatusUp,
				Message:   "Application is running",
				Timestamp: time.Now(),
				Duration:  0,
			},
		},
		Uptime: time.Since(h.startTime),
	}
}
