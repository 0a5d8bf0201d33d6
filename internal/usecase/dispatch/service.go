// Package dispatch turns persisted messages into queued delivery jobs: the
// immediate fan-out after intake and the periodic sweep of scheduled requests.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/repository"
	"notifrelay/internal/resilience/retry"
)

const (
	publishAttempts = 3
	publishDelay    = 200 * time.Millisecond
)

// Publisher is the slice of the job queue the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, messageID string, priority entity.Priority) error
}

// Stats summarizes one scheduled-dispatch sweep.
type Stats struct {
	ClaimedRequests int
	Enqueued        int
	Failed          int
}

// Service enqueues delivery jobs for persisted messages.
type Service struct {
	Requests  repository.RequestRepository
	Messages  repository.MessageRepository
	Publisher Publisher
	Logger    *slog.Logger
}

// EnqueueMessages publishes one delivery job per message, retrying transient
// publish failures with a short fixed delay. A message whose job cannot be
// published is logged and skipped; it stays PENDING, and the returned error
// tells the caller the fan-out is incomplete. The scheduled sweep releases
// its claim on such requests and retries them on the next run; for immediate
// requests the stragglers need an operator redispatch. Returns the number of
// jobs actually published.
func (s *Service) EnqueueMessages(ctx context.Context, msgs []*entity.Message) (int, error) {
	enqueued := 0
	for _, msg := range msgs {
		err := retry.WithFixedDelay(ctx, publishAttempts, publishDelay, func() error {
			return s.Publisher.Publish(ctx, msg.ID, msg.Priority)
		})
		if err != nil {
			s.Logger.Error("failed to enqueue delivery job",
				slog.String("message_id", msg.ID),
				slog.String("request_id", msg.RequestID),
				slog.Any("error", err))
			continue
		}
		enqueued++
	}
	if enqueued < len(msgs) {
		return enqueued, fmt.Errorf("EnqueueMessages: published %d of %d jobs", enqueued, len(msgs))
	}
	return enqueued, nil
}

// DispatchDueScheduled claims every request whose schedule time has passed and
// enqueues its pending messages. Claiming flips the request to PROCESSING
// first, so concurrent sweeps never double-enqueue; the schedule is cleared
// only after the request's jobs are all out.
func (s *Service) DispatchDueScheduled(ctx context.Context, now time.Time) (Stats, error) {
	claimed, err := s.Requests.ClaimDueScheduled(ctx, now)
	if err != nil {
		return Stats{}, fmt.Errorf("DispatchDueScheduled: %w", err)
	}
	stats := Stats{ClaimedRequests: len(claimed)}
	if len(claimed) == 0 {
		return stats, nil
	}

	ids := make([]string, 0, len(claimed))
	for _, req := range claimed {
		ids = append(ids, req.ID)
	}

	msgs, err := s.Messages.ListPendingByRequests(ctx, ids)
	if err != nil {
		for _, id := range ids {
			if releaseErr := s.Requests.ReleaseClaim(ctx, id); releaseErr != nil {
				s.Logger.Error("failed to release dispatch claim",
					slog.String("request_id", id),
					slog.Any("error", releaseErr))
			}
		}
		return stats, fmt.Errorf("DispatchDueScheduled: %w", err)
	}

	byRequest := make(map[string][]*entity.Message, len(claimed))
	for _, msg := range msgs {
		byRequest[msg.RequestID] = append(byRequest[msg.RequestID], msg)
	}

	for _, req := range claimed {
		enqueued, err := s.EnqueueMessages(ctx, byRequest[req.ID])
		stats.Enqueued += enqueued
		if err != nil {
			stats.Failed++
			s.Logger.Error("scheduled request partially enqueued",
				slog.String("request_id", req.ID),
				slog.Any("error", err))
			// Give the claim back so the next sweep retries the leftovers.
			// Duplicate jobs for the already-published messages are safe.
			if releaseErr := s.Requests.ReleaseClaim(ctx, req.ID); releaseErr != nil {
				s.Logger.Error("failed to release dispatch claim",
					slog.String("request_id", req.ID),
					slog.Any("error", releaseErr))
			}
			continue
		}
		if err := s.Requests.ClearSchedule(ctx, req.ID); err != nil {
			stats.Failed++
			s.Logger.Error("failed to clear schedule",
				slog.String("request_id", req.ID),
				slog.Any("error", err))
			continue
		}
		s.Logger.Info("scheduled request dispatched",
			slog.String("request_id", req.ID),
			slog.Int("enqueued", enqueued))
	}
	return stats, nil
}
