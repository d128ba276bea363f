package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/pinkbeam/platform/pkg/observability"
)

// ConnectionManager owns the primary pool and any read replica pools.
// Writes always go to the primary. Read-only callers query through
// QueryContext, which spreads load across replicas and falls back to the
// primary when none are configured. A background sweep closes replicas
// that stop answering pings, so the replica set only shrinks at runtime.
type ConnectionManager struct {
	primary *sql.DB
	config  ConnectionConfig
	logger  *observability.Logger

	mu       sync.RWMutex
	replicas []*sql.DB
	next     uint32
}

// ConnectionConfig carries the pool settings from the database section of
// the platform config. MaxConns bounds the primary pool; each replica pool
// gets half that, since reads are spread across replicas.
type ConnectionConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// NewConnectionManager opens and pings the primary, then opens whatever
// replicas it can reach. The primary is required; a replica that fails to
// connect is skipped with a warning, because reads can always fall back.
func NewConnectionManager(config ConnectionConfig, logger *observability.Logger) (*ConnectionManager, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	cm := &ConnectionManager{config: config, logger: logger}

	primary, err := cm.openPool(config.PrimaryURL, config.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	cm.primary = primary

	for i, url := range config.ReplicaURLs {
		replica, err := cm.openPool(url, replicaMaxConns(config.MaxConns))
		if err != nil {
			logger.WithError(err).Warnf("skipping replica %d", i)
			continue
		}
		cm.replicas = append(cm.replicas, replica)
	}

	logger.WithField("replicas", len(cm.replicas)).Info("database pools ready")
	return cm, nil
}

// openPool opens a pool, applies the configured limits, and verifies the
// endpoint answers a ping within the connect timeout.
func (cm *ConnectionManager) openPool(url string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(cm.config.MinConns)
	db.SetConnMaxLifetime(cm.config.MaxLifetime)
	db.SetConnMaxIdleTime(cm.config.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// replicaMaxConns halves the primary budget per replica pool, with a floor
// of two so a replica can still serve concurrent reads on tiny configs.
func replicaMaxConns(primaryMax int) int {
	n := primaryMax / 2
	if n < 2 {
		n = 2
	}
	return n
}

// Primary returns the write pool.
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns a pool for read-only queries, round-robining across the
// live replicas. With no replicas it returns the primary, so callers never
// need to care whether replicas are configured.
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicas) == 0 {
		return cm.primary
	}
	n := atomic.AddUint32(&cm.next, 1)
	return cm.replicas[int(n)%len(cm.replicas)]
}

// QueryContext runs a read-only query on a replica pool, picking a fresh
// one per call. Read-mostly services take this method as their query
// surface instead of holding a *sql.DB, which keeps them off the primary.
func (cm *ConnectionManager) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return cm.Replica().QueryContext(ctx, query, args...)
}

// PoolStats aggregates driver statistics across the primary and every live
// replica, for the periodic metrics poll.
type PoolStats struct {
	InUse    int
	Idle     int
	Replicas int
}

func (cm *ConnectionManager) Stats() PoolStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	s := cm.primary.Stats()
	stats := PoolStats{InUse: s.InUse, Idle: s.Idle, Replicas: len(cm.replicas)}
	for _, replica := range cm.replicas {
		rs := replica.Stats()
		stats.InUse += rs.InUse
		stats.Idle += rs.Idle
	}
	return stats
}

// pruneDeadReplicas pings every replica and closes the ones that fail,
// returning how many were dropped. Holding the write lock for the pings is
// acceptable: readers only block during the sweep, which is bounded by the
// caller's context.
func (cm *ConnectionManager) pruneDeadReplicas(ctx context.Context) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	alive := cm.replicas[:0]
	pruned := 0
	for _, replica := range cm.replicas {
		if err := replica.PingContext(ctx); err != nil {
			replica.Close()
			pruned++
			continue
		}
		alive = append(alive, replica)
	}
	cm.replicas = alive
	return pruned
}

// StartHealthCheckRoutine sweeps the replica set on the given interval,
// closing replicas that stop answering pings. Reads shift to the remaining
// replicas, or to the primary once none are left. The sweep stops when ctx
// is cancelled; a zero interval defaults to 30 seconds.
func (cm *ConnectionManager) StartHealthCheckRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		defer observability.RecoverPanic(cm.logger, "replica health sweep")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				pruned := cm.pruneDeadReplicas(sweepCtx)
				cancel()
				if pruned > 0 {
					cm.logger.WithField("pruned", pruned).Warn("closed unreachable replicas")
				}
			}
		}
	}()
}

// Close closes every pool. Replicas are detached first so a concurrent
// reader cannot pick up a pool that is about to close.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.mu.Unlock()

	errs := []error{cm.primary.Close()}
	for _, replica := range replicas {
		errs = append(errs, replica.Close())
	}
	return errors.Join(errs...)
}

// ParseReplicaURLs splits the comma-separated replica list from the
// database config. Blank entries are dropped.
func ParseReplicaURLs(s string) []string {
	if s == "" {
		return nil
	}
	var urls []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
