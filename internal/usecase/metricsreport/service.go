// Package metricsreport assembles the operational summary exposed by the API:
// status breakdowns, windowed success/failure rates, average delivery latency
// and queue depths.
package metricsreport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/observability/metrics"
	"notifrelay/internal/repository"
)

// QueueInspector reports the ready-job depth of each delivery lane.
type QueueInspector interface {
	Depths(ctx context.Context) (map[string]int, error)
}

// Summary is the assembled report.
type Summary struct {
	WindowMinutes     int
	RequestCounts     map[entity.Status]int64
	MessageCounts     map[entity.Status]int64
	SuccessRate       float64
	FailureRate       float64
	AvgLatencySeconds float64
	QueueDepths       map[string]int
}

// Service computes operational summaries.
type Service struct {
	Requests repository.RequestRepository
	Messages repository.MessageRepository
	Queue    QueueInspector
	Logger   *slog.Logger
}

// Summary builds the report over the trailing window. Rates and latency fall
// back to all-time figures when the window saw no completed message, so a
// quiet period reads as history instead of zeros.
func (s *Service) Summary(ctx context.Context, windowMinutes int) (*Summary, error) {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}

	requestCounts, err := s.Requests.CountsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	messageCounts, err := s.Messages.CountsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	stats, err := s.Messages.Completion(ctx, &since)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	if stats.Sent+stats.Failed == 0 {
		stats, err = s.Messages.Completion(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("Summary: %w", err)
		}
	}

	summary := &Summary{
		WindowMinutes: windowMinutes,
		RequestCounts: requestCounts,
		MessageCounts: messageCounts,
	}
	if total := stats.Sent + stats.Failed; total > 0 {
		summary.SuccessRate = float64(stats.Sent) / float64(total)
		summary.FailureRate = float64(stats.Failed) / float64(total)
	}
	if stats.HasLatency {
		summary.AvgLatencySeconds = stats.AvgLatencySeconds
	}

	// Queue depth is advisory; a broker hiccup must not hide the DB figures.
	if s.Queue != nil {
		depths, err := s.Queue.Depths(ctx)
		if err != nil {
			s.Logger.Warn("failed to inspect queue depths", slog.Any("error", err))
		} else {
			summary.QueueDepths = depths
			for lane, depth := range depths {
				metrics.QueueDepth.WithLabelValues(lane).Set(float64(depth))
			}
		}
	}

	return summary, nil
}
