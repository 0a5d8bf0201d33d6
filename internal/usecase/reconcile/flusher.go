// Package reconcile folds the Redis-buffered delivery counters into the
// durable request rollups. It runs on a short periodic schedule; each cycle
// drains the dirty set and applies per-request deltas.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"notifrelay/internal/observability/metrics"
	"notifrelay/internal/repository"
)

// CounterStore is the buffered-counter surface the flusher drains.
type CounterStore interface {
	DirtyRequests(ctx context.Context) ([]string, error)
	ReadAndClear(ctx context.Context, requestID string) (sent, failed int64, err error)
	ClearDirty(ctx context.Context, requestID string) error
}

// FlushStats summarizes one flush cycle.
type FlushStats struct {
	Dirty   int
	Applied int
	Empty   int
	Closed  int
	Errors  int
}

// Flusher reconciles buffered counters with the durable rollup columns.
type Flusher struct {
	Counters CounterStore
	Requests repository.RequestRepository
	Logger   *slog.Logger
}

// Flush drains every dirty request once. Per-request failures are counted and
// logged but never abort the cycle; the dirty marker survives a failed rollup
// write, so the request is revisited next cycle.
func (f *Flusher) Flush(ctx context.Context) (FlushStats, error) {
	ids, err := f.Counters.DirtyRequests(ctx)
	if err != nil {
		metrics.CounterFlushTotal.WithLabelValues("failure").Inc()
		return FlushStats{}, fmt.Errorf("Flush: %w", err)
	}

	stats := FlushStats{Dirty: len(ids)}
	for _, id := range ids {
		if err := f.flushOne(ctx, id, &stats); err != nil {
			stats.Errors++
			metrics.CounterFlushRequests.WithLabelValues("error").Inc()
			f.Logger.Error("counter flush failed for request",
				slog.String("request_id", id),
				slog.Any("error", err))
		}
	}

	result := "success"
	if stats.Errors > 0 {
		result = "partial"
	}
	metrics.CounterFlushTotal.WithLabelValues(result).Inc()

	if stats.Dirty > 0 {
		f.Logger.Info("counter flush cycle complete",
			slog.Int("dirty", stats.Dirty),
			slog.Int("applied", stats.Applied),
			slog.Int("closed", stats.Closed),
			slog.Int("errors", stats.Errors))
	}
	return stats, nil
}

func (f *Flusher) flushOne(ctx context.Context, id string, stats *FlushStats) error {
	sent, failed, err := f.Counters.ReadAndClear(ctx, id)
	if err != nil {
		return err
	}

	if sent == 0 && failed == 0 {
		// A prior cycle applied the deltas but died before clearing the
		// marker, or the increments raced onto an already-flushed hash.
		stats.Empty++
		metrics.CounterFlushRequests.WithLabelValues("empty").Inc()
		return f.Counters.ClearDirty(ctx, id)
	}

	outcome, err := f.Requests.ApplyCounterDeltas(ctx, id, sent, failed)
	if err != nil {
		// The deltas read from Redis are lost, but the marker stays; the next
		// cycle reapplies whatever has accumulated since.
		return err
	}

	if !outcome.Applied {
		f.Logger.Warn("dropping counters for unknown request", slog.String("request_id", id))
	} else {
		stats.Applied++
		metrics.CounterFlushRequests.WithLabelValues("applied").Inc()
		if outcome.Closed {
			stats.Closed++
			f.Logger.Info("request closed", slog.String("request_id", id))
		}
	}

	// Unmark only after the durable write settled.
	return f.Counters.ClearDirty(ctx, id)
}
