package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"notifrelay/internal/pkg/config"
)

// PoolConfig bounds the connection pool shared by the API and worker.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the production pool bounds.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open connects to DATABASE_URL, applies the pool bounds from the
// environment and verifies the connection with a short ping.
func Open(ctx context.Context, logger *slog.Logger) (*sql.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("Open: DATABASE_URL is not set")
	}

	pool, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	cfg := poolConfigFromEnv(logger)
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("database pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	return pool, nil
}

// poolConfigFromEnv reads the pool bounds fail-open: an unparsable or
// out-of-range value warns and keeps the default.
func poolConfigFromEnv(logger *slog.Logger) PoolConfig {
	cfg := DefaultPoolConfig()

	load := func(result config.ConfigLoadResult) config.ConfigLoadResult {
		for _, w := range result.Warnings {
			logger.Warn(w)
		}
		return result
	}

	cfg.MaxOpenConns = load(config.LoadEnvInt(
		"DB_MAX_OPEN_CONNS", cfg.MaxOpenConns, config.ValidateIntRange(1, 500))).Value.(int)
	cfg.MaxIdleConns = load(config.LoadEnvInt(
		"DB_MAX_IDLE_CONNS", cfg.MaxIdleConns, config.ValidateIntRange(1, 500))).Value.(int)
	cfg.ConnMaxLifetime = load(config.LoadEnvDuration(
		"DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime, config.ValidatePositiveDuration)).Value.(time.Duration)
	cfg.ConnMaxIdleTime = load(config.LoadEnvDuration(
		"DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime, config.ValidatePositiveDuration)).Value.(time.Duration)

	return cfg
}
