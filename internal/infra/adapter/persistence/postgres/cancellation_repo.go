package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/repository"
)

// CancellationRepo implements the row-locked cancellation transactions.
// A worker racing a cancellation either wins by moving the message to
// PROCESSING first (cancel then conflicts) or loses and never sees the row as
// PENDING again. FOR UPDATE makes the check-then-transition indivisible.
// Both operations lock the parent request row before touching message rows so
// concurrent cancels on the same request cannot deadlock.
type CancellationRepo struct {
	db *sql.DB
}

func NewCancellationRepo(db *sql.DB) repository.CancellationRepository {
	return &CancellationRepo{db: db}
}

func (repo *CancellationRepo) CancelMessage(ctx context.Context, messageID, clientID string) (*repository.CancelMessageResult, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CancelMessage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const lockRequestQuery = `
SELECT r.id
FROM notif_requests r
WHERE r.id = (SELECT request_id FROM notif_messages WHERE id = $1)
  AND r.client_id = $2
FOR UPDATE`

	var requestID string
	err = tx.QueryRowContext(ctx, lockRequestQuery, messageID, clientID).Scan(&requestID)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("CancelMessage: lock request: %w", err)
	}

	const lockMessageQuery = `
SELECT status FROM notif_messages WHERE id = $1 FOR UPDATE`
	var status entity.Status
	if err := tx.QueryRowContext(ctx, lockMessageQuery, messageID).Scan(&status); err != nil {
		return nil, fmt.Errorf("CancelMessage: lock message: %w", err)
	}
	if status != entity.StatusPending {
		return nil, entity.ErrConflict
	}

	const cancelQuery = `
UPDATE notif_messages
SET status = $2, delivery_state = $3, updated_at = NOW()
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, cancelQuery, messageID, entity.StatusCancelled, entity.DeliveryRejected); err != nil {
		return nil, fmt.Errorf("CancelMessage: cancel: %w", err)
	}

	const adjustQuery = `
UPDATE notif_requests
SET pending_count = GREATEST(pending_count - 1, 0),
    cancelled_count = cancelled_count + 1,
    updated_at = NOW()
WHERE id = $1
RETURNING pending_count`
	var pending int
	if err := tx.QueryRowContext(ctx, adjustQuery, requestID).Scan(&pending); err != nil {
		return nil, fmt.Errorf("CancelMessage: adjust counts: %w", err)
	}

	requestStatus, err := closeRequestIfDrained(ctx, tx, requestID, pending)
	if err != nil {
		return nil, fmt.Errorf("CancelMessage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CancelMessage: commit: %w", err)
	}
	return &repository.CancelMessageResult{
		RequestID:     requestID,
		Status:        entity.StatusCancelled,
		DeliveryState: entity.DeliveryRejected,
		RequestStatus: requestStatus,
	}, nil
}

func (repo *CancellationRepo) CancelRequest(ctx context.Context, requestID, clientID string) (*repository.CancelRequestResult, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CancelRequest: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const lockQuery = `
SELECT id FROM notif_requests
WHERE id = $1 AND client_id = $2
FOR UPDATE`
	var id string
	err = tx.QueryRowContext(ctx, lockQuery, requestID, clientID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("CancelRequest: lock: %w", err)
	}

	const cancelQuery = `
UPDATE notif_messages
SET status = $2, delivery_state = $3, updated_at = NOW()
WHERE request_id = $1 AND status = $4`
	res, err := tx.ExecContext(ctx, cancelQuery, requestID,
		entity.StatusCancelled, entity.DeliveryRejected, entity.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("CancelRequest: cancel messages: %w", err)
	}
	cancelled, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("CancelRequest: rows affected: %w", err)
	}
	if cancelled == 0 {
		return nil, entity.ErrConflict
	}

	const adjustQuery = `
UPDATE notif_requests
SET pending_count = GREATEST(pending_count - $2, 0),
    cancelled_count = cancelled_count + $2,
    updated_at = NOW()
WHERE id = $1
RETURNING pending_count`
	var pending int
	if err := tx.QueryRowContext(ctx, adjustQuery, requestID, cancelled).Scan(&pending); err != nil {
		return nil, fmt.Errorf("CancelRequest: adjust counts: %w", err)
	}

	status, err := closeRequestIfDrained(ctx, tx, requestID, pending)
	if err != nil {
		return nil, fmt.Errorf("CancelRequest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CancelRequest: commit: %w", err)
	}
	return &repository.CancelRequestResult{
		CancelledCount: int(cancelled),
		PendingCount:   pending,
		Status:         status,
	}, nil
}

// closeRequestIfDrained transitions the request to CANCELLED when no pending
// messages remain, and returns the request's resulting status.
func closeRequestIfDrained(ctx context.Context, tx *sql.Tx, requestID string, pending int) (entity.Status, error) {
	if pending > 0 {
		var status entity.Status
		const statusQuery = `SELECT status FROM notif_requests WHERE id = $1`
		if err := tx.QueryRowContext(ctx, statusQuery, requestID).Scan(&status); err != nil {
			return "", fmt.Errorf("read status: %w", err)
		}
		return status, nil
	}

	const closeQuery = `UPDATE notif_requests SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, closeQuery, requestID, entity.StatusCancelled); err != nil {
		return "", fmt.Errorf("close request: %w", err)
	}
	return entity.StatusCancelled, nil
}
