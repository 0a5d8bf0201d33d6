// Package repository declares the persistence interfaces consumed by the
// usecase layer. Implementations live under internal/infra/adapter/persistence.
package repository

import (
	"context"
	"time"

	"notifrelay/internal/domain/entity"
)

// RequestFilter contains optional filters for listing notification requests.
type RequestFilter struct {
	Status  *entity.Status
	Channel *entity.Channel
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// FlushOutcome reports how a counter delta application affected the rollup row.
type FlushOutcome struct {
	// Applied is false when the request row no longer exists.
	Applied bool
	// Closed is true when pending_count reached zero and the request
	// transitioned to SENT.
	Closed bool
}

type RequestRepository interface {
	// CreateWithMessages persists the request row and its accepted message
	// batch in a single transaction. Messages are inserted in bounded chunks
	// to keep statements under parameter limits.
	CreateWithMessages(ctx context.Context, req *entity.Request, msgs []*entity.Message) error
	Get(ctx context.Context, id string) (*entity.Request, error)
	// GetByIdempotencyKey returns the prior request created by clientID under
	// the given idempotency key, or nil when none exists.
	GetByIdempotencyKey(ctx context.Context, clientID, key string) (*entity.Request, error)
	// List returns the client's requests newest-first plus the total count for
	// pagination metadata.
	List(ctx context.Context, clientID string, f RequestFilter) ([]*entity.Request, int64, error)
	// ClaimDueScheduled atomically claims requests whose schedule time has
	// passed by flipping status PENDING->PROCESSING, and returns the claimed
	// rows. Concurrent callers never claim the same request twice.
	ClaimDueScheduled(ctx context.Context, now time.Time) ([]*entity.Request, error)
	// ClearSchedule nulls the schedule time after a claimed request has been
	// fully enqueued.
	ClearSchedule(ctx context.Context, id string) error
	// ReleaseClaim flips a claimed request back to PENDING so the next sweep
	// can retry it. A no-op when the request already left PROCESSING.
	ReleaseClaim(ctx context.Context, id string) error
	// ApplyCounterDeltas folds buffered sent/failed increments into the rollup
	// columns, clamping pending_count at zero, and closes the request to SENT
	// when pending_count reaches zero.
	ApplyCounterDeltas(ctx context.Context, id string, sent, failed int64) (FlushOutcome, error)
	CountsByStatus(ctx context.Context) (map[entity.Status]int64, error)
}
