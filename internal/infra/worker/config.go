package worker

import (
	"fmt"
	"log/slog"
	"time"

	"notifrelay/internal/pkg/config"
)

// WorkerConfig holds the operational knobs for the worker binary: the
// scheduled-dispatch sweep, the counter flush cadence, queue consumption and
// the per-channel rate limit. It is always loaded fail-open; invalid
// environment falls back to defaults with a warning instead of aborting.
type WorkerConfig struct {
	// DispatchSchedule is the cron expression for the scheduled-dispatch
	// sweep (five fields, no seconds). Default runs every minute.
	DispatchSchedule string

	// Timezone is the IANA timezone the cron scheduler runs in.
	Timezone string

	// FlushInterval is how often buffered delivery counters are flushed
	// from Redis into Postgres.
	FlushInterval time.Duration

	// ConsumerConcurrency is the number of handler goroutines per queue lane.
	ConsumerConcurrency int

	// ConsumerPrefetch bounds unacknowledged deliveries per consumer channel.
	ConsumerPrefetch int

	// RetryBackoff is the fixed delay before a retried delivery job is
	// re-published.
	RetryBackoff time.Duration

	// RateLimitPerMinute caps provider calls per channel per minute.
	RateLimitPerMinute int

	// HealthPort serves the liveness and readiness probes.
	HealthPort int
}

// DefaultConfig returns production-ready defaults: a per-minute dispatch
// sweep, a 10-second counter flush, and modest consumer concurrency.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		DispatchSchedule:    "* * * * *",
		Timezone:            "UTC",
		FlushInterval:       10 * time.Second,
		ConsumerConcurrency: 4,
		ConsumerPrefetch:    8,
		RetryBackoff:        1 * time.Second,
		RateLimitPerMinute:  600,
		HealthPort:          9091,
	}
}

// Validate checks every field and aggregates the failures. LoadConfigFromEnv
// already validates per field; this is for configs built by hand.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.DispatchSchedule); err != nil {
		errs = append(errs, fmt.Errorf("dispatch schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(time.Second, 5*time.Minute)(c.FlushInterval); err != nil {
		errs = append(errs, fmt.Errorf("flush interval: %w", err))
	}
	if err := config.ValidateIntRange(1, 64)(c.ConsumerConcurrency); err != nil {
		errs = append(errs, fmt.Errorf("consumer concurrency: %w", err))
	}
	if err := config.ValidateIntRange(1, 256)(c.ConsumerPrefetch); err != nil {
		errs = append(errs, fmt.Errorf("consumer prefetch: %w", err))
	}
	if err := config.ValidateDuration(100*time.Millisecond, time.Minute)(c.RetryBackoff); err != nil {
		errs = append(errs, fmt.Errorf("retry backoff: %w", err))
	}
	if err := config.ValidateIntRange(1, 100000)(c.RateLimitPerMinute); err != nil {
		errs = append(errs, fmt.Errorf("rate limit per minute: %w", err))
	}
	if err := config.ValidateIntRange(1024, 65535)(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads worker configuration from the environment with
// per-field validation and fallback to defaults. It never returns an error;
// every fallback is logged and recorded on the config metrics so a typo'd
// deployment shows up on the dashboard instead of crash-looping.
//
// Environment variables:
//   - DISPATCH_CRON_SCHEDULE: cron expression (default "* * * * *")
//   - WORKER_TIMEZONE:        IANA timezone (default "UTC")
//   - FLUSH_INTERVAL:         duration 1s-5m (default 10s)
//   - CONSUMER_CONCURRENCY:   integer 1-64 (default 4)
//   - CONSUMER_PREFETCH:      integer 1-256 (default 8)
//   - RETRY_BACKOFF:          duration 100ms-1m (default 1s)
//   - RATE_LIMIT_PER_MINUTE:  integer 1-100000 (default 600)
//   - WORKER_HEALTH_PORT:     integer 1024-65535 (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	applied := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field)
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("DISPATCH_CRON_SCHEDULE", cfg.DispatchSchedule, config.ValidateCronSchedule)
	cfg.DispatchSchedule = result.Value.(string)
	applied("dispatch_cron_schedule", result)

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	applied("worker_timezone", result)

	result = config.LoadEnvDuration("FLUSH_INTERVAL", cfg.FlushInterval, config.ValidateDuration(time.Second, 5*time.Minute))
	cfg.FlushInterval = result.Value.(time.Duration)
	applied("flush_interval", result)

	result = config.LoadEnvInt("CONSUMER_CONCURRENCY", cfg.ConsumerConcurrency, config.ValidateIntRange(1, 64))
	cfg.ConsumerConcurrency = result.Value.(int)
	applied("consumer_concurrency", result)

	result = config.LoadEnvInt("CONSUMER_PREFETCH", cfg.ConsumerPrefetch, config.ValidateIntRange(1, 256))
	cfg.ConsumerPrefetch = result.Value.(int)
	applied("consumer_prefetch", result)

	result = config.LoadEnvDuration("RETRY_BACKOFF", cfg.RetryBackoff, config.ValidateDuration(100*time.Millisecond, time.Minute))
	cfg.RetryBackoff = result.Value.(time.Duration)
	applied("retry_backoff", result)

	result = config.LoadEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute, config.ValidateIntRange(1, 100000))
	cfg.RateLimitPerMinute = result.Value.(int)
	applied("rate_limit_per_minute", result)

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, config.ValidateIntRange(1024, 65535))
	cfg.HealthPort = result.Value.(int)
	applied("worker_health_port", result)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
