package scheduler

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// options holds the scheduler's tunables, built by applying Option values
// over defaultOptions — the teacher's internal/services/scheduler
// functional-options shape (options.go), generalized from ticket/email
// concerns to per-provider sync.
type options struct {
	Logger        *slog.Logger
	Redis         *redis.Client
	BackoffBase   time.Duration
	BackoffCeil   time.Duration
	DrainDeadline time.Duration
	Metrics       *Metrics
}

// Option configures a Scheduler at construction time.
type Option func(*options)

func defaultOptions() options {
	return options{
		Logger:        slog.Default(),
		BackoffBase:   30 * time.Second,
		BackoffCeil:   30 * time.Minute,
		DrainDeadline: 10 * time.Second,
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.Logger = l }
}

// WithRedis injects a Redis client the scheduler mirrors each provider's
// in-progress/idle flag into (key scryhub:sync_state:<id>, one-minute
// expiry). Nothing reads the mirror back: Status and sync.status read the
// cache, which remains the source of truth across restarts.
func WithRedis(rdb *redis.Client) Option {
	return func(o *options) { o.Redis = rdb }
}

// WithBackoff overrides the default backoff base and ceiling durations
// (spec §4.F: wait = min(base * 2^(n-1), ceiling)).
func WithBackoff(base, ceiling time.Duration) Option {
	return func(o *options) {
		o.BackoffBase = base
		o.BackoffCeil = ceiling
	}
}

// WithDrainDeadline overrides how long Shutdown waits for in-flight syncs to
// finish before returning anyway.
func WithDrainDeadline(d time.Duration) Option {
	return func(o *options) { o.DrainDeadline = d }
}

// WithMetrics injects a pre-built, pre-registered Metrics instance instead
// of the package default.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.Metrics = m }
}
