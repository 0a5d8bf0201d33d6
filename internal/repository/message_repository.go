package repository

import (
	"context"
	"time"

	"notifrelay/internal/domain/entity"
)

// CompletionStats aggregates completed (sent or failed) messages for the
// metrics summary.
type CompletionStats struct {
	Sent   int64
	Failed int64
	// AvgLatencySeconds is the average updated_at-created_at gap of completed
	// messages. HasLatency is false when no completed message matched.
	AvgLatencySeconds float64
	HasLatency        bool
}

type MessageRepository interface {
	Get(ctx context.Context, id string) (*entity.Message, error)
	ListByRequest(ctx context.Context, requestID string) ([]*entity.Message, error)
	// ListPendingByRequests fetches the still-PENDING messages of many
	// requests in one query, avoiding an N+1 during scheduled dispatch.
	ListPendingByRequests(ctx context.Context, requestIDs []string) ([]*entity.Message, error)
	// MarkProcessing transitions PENDING->PROCESSING and increments the
	// attempt counter. A no-op when the message already left PENDING.
	MarkProcessing(ctx context.Context, id string) error
	// MarkSent records a successful provider hand-off.
	MarkSent(ctx context.Context, id string, state entity.DeliveryState, providerMessageID string) error
	// MarkFailed is invoked only by the retry-exhaustion handler.
	MarkFailed(ctx context.Context, id string, lastError string) error
	// ResetForRetry returns a message to PENDING/QUEUED after a retryable
	// delivery failure, recording the error.
	ResetForRetry(ctx context.Context, id string, lastError string) error
	CountsByStatus(ctx context.Context) (map[entity.Status]int64, error)
	// Completion aggregates sent/failed counts and average latency for
	// messages completed at or after since. A nil since means all time.
	Completion(ctx context.Context, since *time.Time) (CompletionStats, error)
}

// CancelMessageResult is returned by CancellationRepository.CancelMessage.
type CancelMessageResult struct {
	RequestID     string
	Status        entity.Status
	DeliveryState entity.DeliveryState
	RequestStatus entity.Status
}

// CancelRequestResult is returned by CancellationRepository.CancelRequest.
type CancelRequestResult struct {
	CancelledCount int
	PendingCount   int
	Status         entity.Status
}

// CancellationRepository performs the transactional, row-locked cancellation
// paths. Both operations race against workers moving messages out of PENDING;
// the lock plus the "only PENDING can be cancelled" guard make them safe.
type CancellationRepository interface {
	// CancelMessage cancels a single PENDING message owned by clientID.
	// Returns entity.ErrNotFound when no such message exists for the client,
	// entity.ErrConflict when the message already left PENDING.
	CancelMessage(ctx context.Context, messageID, clientID string) (*CancelMessageResult, error)
	// CancelRequest cancels every PENDING message of the request. Returns
	// entity.ErrNotFound for unknown/foreign requests and entity.ErrConflict
	// when nothing is left to cancel.
	CancelRequest(ctx context.Context, requestID, clientID string) (*CancelRequestResult, error)
}
