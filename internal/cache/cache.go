// Package cache is the durable, single-file SQLite store behind the hub's
// unified views: cached stream/item metadata, per-provider sync state, and
// an FTS5 index used by search.query. Adapted from the teacher's
// internal/database pool (dialect-aware sqlx wrapper with prometheus
// instrumentation), narrowed from Postgres/MySQL pooling down to a single
// embedded sqlite3 database per original_source's cache/mod.rs doc comment.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
)

// Cache wraps a sqlite-backed connection and the prometheus collectors the
// query helpers in this package report against.
type Cache struct {
	db *sqlx.DB

	mu sync.Mutex

	queryDuration *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
	slowQueries   prometheus.Counter
}

// Metrics bundles the collectors a Cache reports to, so callers can register
// them once against a single prometheus.Registerer shared by the rest of the
// daemon (scheduler, RPC service).
type Metrics struct {
	QueryDuration *prometheus.HistogramVec
	ErrorsTotal   *prometheus.CounterVec
	SlowQueries   prometheus.Counter
}

// NewMetrics builds the cache's collectors without registering them.
func NewMetrics() Metrics {
	return Metrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hub",
			Subsystem: "cache",
			Name:      "query_duration_seconds",
			Help:      "Duration of cache queries by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Cache operations that returned an error, by operation.",
		}, []string{"operation"}),
		SlowQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub",
			Subsystem: "cache",
			Name:      "slow_queries_total",
			Help:      "Cache queries that exceeded the slow-query threshold.",
		}),
	}
}

// Register adds every Cache collector to reg.
func (m Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.QueryDuration, m.ErrorsTotal, m.SlowQueries} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

const slowQueryThreshold = 250 * time.Millisecond

// DefaultPath returns $XDG_DATA_HOME/scryhub/cache.db, falling back to
// os.UserCacheDir the way hubconfig.CachePath does.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "scryhub", "cache.db"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "scryhub", "cache.db"), nil
}

// Open opens (creating if necessary) the sqlite database at path, applies
// any pending migrations, and wires up metrics.
func Open(path string, m Metrics) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// sqlite allows only one writer; a single open connection avoids
	// SQLITE_BUSY from sqlx handing out concurrent writer connections.
	db.SetMaxOpenConns(1)

	c := &Cache{
		db:            db,
		queryDuration: m.QueryDuration,
		errorsTotal:   m.ErrorsTotal,
		slowQueries:   m.SlowQueries,
	}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// instrument runs fn, recording its duration and any error under operation.
func (c *Cache) instrument(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if c.queryDuration != nil {
		c.queryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	}
	if err != nil && c.errorsTotal != nil {
		c.errorsTotal.WithLabelValues(operation).Inc()
	}
	if elapsed > slowQueryThreshold && c.slowQueries != nil {
		c.slowQueries.Inc()
	}
	return err
}

// writeLocked serializes every mutation through a single mutex: sqlite's
// single writer-connection pool already blocks concurrent writers, but the
// lock also protects the read-then-write eviction step in upsertItems from
// interleaving with a concurrent upsert of the same stream.
func (c *Cache) writeLocked(operation string, fn func(*sqlx.Tx) error) error {
	return c.instrument(operation, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		tx, err := c.db.Beginx()
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
