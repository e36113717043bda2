package optimistic

import (
	"log/slog"
	"time"

	"github.com/krisalay/optimistic-cache/logging"
	"github.com/krisalay/optimistic-cache/staleness"
	"github.com/krisalay/optimistic-cache/types"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 16

type options struct {
	shards    int
	fetcher   types.Fetcher
	metrics   types.Metrics
	logger    *logging.Logger
	staleness staleness.Strategy
	clock     func() time.Time
}

// Option configures NewStore.
type Option func(*options)

// WithShards sets the number of shards. Values below 1 fall back to a single shard.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// WithFetcher configures how Fetch obtains confirmed values.
func WithFetcher(f types.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithMetrics configures the metrics sink. Pass nil to disable metrics.
//
// Example with Prometheus:
//
//	m, err := metrics.NewPrometheus(prometheus.DefaultRegisterer)
//	if err != nil { ... }
//	s := optimistic.NewStore(optimistic.WithMetrics(m))
func WithMetrics(m types.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(logging.NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = logging.NewTextLogger(level)
	}
}

// WithStaleness configures when entries read as stale.
func WithStaleness(s staleness.Strategy) Option {
	return func(o *options) {
		o.staleness = s
	}
}

// WithStaleAfter is shorthand for WithStaleness(staleness.StaleAfterWrite{TTL: d}).
func WithStaleAfter(d time.Duration) Option {
	return func(o *options) {
		o.staleness = staleness.StaleAfterWrite{TTL: d}
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		shards:    DefaultShards,
		metrics:   types.NoopMetrics{},
		logger:    logging.NoopLogger(),
		staleness: staleness.Never{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.shards < 1 {
		o.shards = 1
	}
	if o.metrics == nil {
		o.metrics = types.NoopMetrics{}
	}
	if o.logger == nil {
		o.logger = logging.NoopLogger()
	}
	return o
}
