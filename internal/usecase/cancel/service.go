// Package cancel implements cancellation of pending deliveries, for a single
// message or a whole request. Only PENDING messages can be cancelled; anything
// already picked up by a worker is a conflict.
package cancel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/observability/metrics"
	"notifrelay/internal/repository"
)

// Service provides the cancellation use cases.
type Service struct {
	Cancellations repository.CancellationRepository
	Logger        *slog.Logger
}

// CancelMessage cancels one PENDING message owned by the client. Returns
// entity.ErrNotFound when the message does not exist for this client and
// entity.ErrConflict when it already left PENDING.
func (s *Service) CancelMessage(ctx context.Context, messageID, clientID string) (*repository.CancelMessageResult, error) {
	result, err := s.Cancellations.CancelMessage(ctx, messageID, clientID)
	if err != nil {
		metrics.CancellationsTotal.WithLabelValues("message", resultLabel(err)).Inc()
		if errors.Is(err, entity.ErrNotFound) || errors.Is(err, entity.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("CancelMessage: %w", err)
	}

	metrics.CancellationsTotal.WithLabelValues("message", "cancelled").Inc()
	s.Logger.Info("message cancelled",
		slog.String("message_id", messageID),
		slog.String("request_id", result.RequestID),
		slog.String("request_status", string(result.RequestStatus)))
	return result, nil
}

// CancelRequest cancels every PENDING message of the client's request.
// Returns entity.ErrNotFound for unknown or foreign requests and
// entity.ErrConflict when nothing was left to cancel.
func (s *Service) CancelRequest(ctx context.Context, requestID, clientID string) (*repository.CancelRequestResult, error) {
	result, err := s.Cancellations.CancelRequest(ctx, requestID, clientID)
	if err != nil {
		metrics.CancellationsTotal.WithLabelValues("request", resultLabel(err)).Inc()
		if errors.Is(err, entity.ErrNotFound) || errors.Is(err, entity.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("CancelRequest: %w", err)
	}

	metrics.CancellationsTotal.WithLabelValues("request", "cancelled").Inc()
	s.Logger.Info("request cancelled",
		slog.String("request_id", requestID),
		slog.Int("cancelled", result.CancelledCount),
		slog.String("status", string(result.Status)))
	return result, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return "not_found"
	case errors.Is(err, entity.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
