package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ServiceVersion is stamped at build time via -ldflags.
var ServiceVersion = "dev"

// DependencyStatus reports one dependency probe.
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthStatus is the readiness payload: the worst dependency status wins.
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// HealthChecker probes the platform's dependencies. Postgres is required;
// a down database makes the service unhealthy. Redis only backs the shared
// unread-count cache, so losing it degrades the service without failing
// readiness.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker creates a checker. Either dependency may be nil; nil
// dependencies are not probed.
func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// Liveness answers 200 whenever the process serves requests at all.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness probes dependencies and answers 503 only when the service is
// unhealthy. Degraded still serves traffic.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check runs every configured probe and aggregates the results.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      ServiceVersion,
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		dep := h.probePostgres(ctx)
		status.Dependencies["database"] = dep
		status.Status = worseOf(status.Status, dep.Status)
	}

	if h.redis != nil {
		dep := h.probeRedis(ctx)
		status.Dependencies["redis"] = dep
		if dep.Status != StatusHealthy {
			// The cache is optional, so cap the impact at degraded.
			status.Status = worseOf(status.Status, StatusDegraded)
		}
	}

	return status
}

// worseOf returns the more severe of two statuses.
func worseOf(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// probePostgres pings, runs a trivial query, and inspects the pool. A pool
// running at its connection ceiling reports degraded before requests start
// queueing on it.
func (h *HealthChecker) probePostgres(ctx context.Context) DependencyStatus {
	start := time.Now()
	dep := DependencyStatus{Status: StatusHealthy, Timestamp: start}

	err := h.db.PingContext(ctx)
	dep.Latency = time.Since(start)
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
		return dep
	}

	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = "query failed: " + err.Error()
		return dep
	}

	if stats := h.db.Stats(); stats.OpenConnections >= stats.MaxOpenConnections {
		dep.Status = StatusDegraded
		dep.Message = "connection pool exhausted"
	}
	return dep
}

func (h *HealthChecker) probeRedis(ctx context.Context) DependencyStatus {
	start := time.Now()
	dep := DependencyStatus{Status: StatusHealthy, Timestamp: start}

	err := h.redis.Ping(ctx).Err()
	dep.Latency = time.Since(start)
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}

// RegisterHealthRoutes mounts the probe endpoints on the ops mux, which the
// server exposes on a separate port from the API.
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
