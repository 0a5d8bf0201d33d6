package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/repository"
)

const messageColumns = `id, request_id, recipient, vars, channel, priority,
status, delivery_state, attempts, provider_message_id, last_error, created_at, updated_at`

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) repository.MessageRepository {
	return &MessageRepo{db: db}
}

func scanMessage(row interface{ Scan(...any) error }) (*entity.Message, error) {
	var msg entity.Message
	var vars []byte
	err := row.Scan(&msg.ID, &msg.RequestID, &msg.To, &vars, &msg.Channel, &msg.Priority,
		&msg.Status, &msg.DeliveryState, &msg.Attempts,
		&msg.ProviderMessageID, &msg.LastError, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &msg.Vars); err != nil {
			return nil, fmt.Errorf("unmarshal vars: %w", err)
		}
	}
	return &msg, nil
}

func (repo *MessageRepo) Get(ctx context.Context, id string) (*entity.Message, error) {
	query := `
SELECT ` + messageColumns + `
FROM notif_messages
WHERE id = $1
LIMIT 1`
	msg, err := scanMessage(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return msg, nil
}

func (repo *MessageRepo) ListByRequest(ctx context.Context, requestID string) ([]*entity.Message, error) {
	query := `
SELECT ` + messageColumns + `
FROM notif_messages
WHERE request_id = $1
ORDER BY created_at`
	return repo.queryMessages(ctx, "ListByRequest", query, requestID)
}

func (repo *MessageRepo) ListPendingByRequests(ctx context.Context, requestIDs []string) ([]*entity.Message, error) {
	if len(requestIDs) == 0 {
		return nil, nil
	}
	query := `
SELECT ` + messageColumns + `
FROM notif_messages
WHERE request_id = ANY($1) AND status = $2
ORDER BY created_at`
	return repo.queryMessages(ctx, "ListPendingByRequests", query, pq.Array(requestIDs), entity.StatusPending)
}

func (repo *MessageRepo) queryMessages(ctx context.Context, op, query string, args ...any) ([]*entity.Message, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]*entity.Message, 0, 100)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: Scan: %w", op, err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (repo *MessageRepo) MarkProcessing(ctx context.Context, id string) error {
	const query = `
UPDATE notif_messages
SET status = $2, attempts = attempts + 1, updated_at = NOW()
WHERE id = $1 AND status = $3`
	if _, err := repo.db.ExecContext(ctx, query, id, entity.StatusProcessing, entity.StatusPending); err != nil {
		return fmt.Errorf("MarkProcessing: %w", err)
	}
	return nil
}

func (repo *MessageRepo) MarkSent(ctx context.Context, id string, state entity.DeliveryState, providerMessageID string) error {
	const query = `
UPDATE notif_messages
SET status = $2, delivery_state = $3, provider_message_id = $4, last_error = '', updated_at = NOW()
WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, query, id, entity.StatusSent, state, providerMessageID); err != nil {
		return fmt.Errorf("MarkSent: %w", err)
	}
	return nil
}

func (repo *MessageRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	const query = `
UPDATE notif_messages
SET status = $2, delivery_state = $3, last_error = $4, updated_at = NOW()
WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, query, id, entity.StatusFailed, entity.DeliveryFailed, lastError); err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

func (repo *MessageRepo) ResetForRetry(ctx context.Context, id string, lastError string) error {
	const query = `
UPDATE notif_messages
SET status = $2, delivery_state = $3, last_error = $4, updated_at = NOW()
WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, query, id, entity.StatusPending, entity.DeliveryQueued, lastError); err != nil {
		return fmt.Errorf("ResetForRetry: %w", err)
	}
	return nil
}

func (repo *MessageRepo) CountsByStatus(ctx context.Context) (map[entity.Status]int64, error) {
	const query = `SELECT status, COUNT(*) FROM notif_messages GROUP BY status`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("CountsByStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[entity.Status]int64)
	for rows.Next() {
		var status entity.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("CountsByStatus: Scan: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (repo *MessageRepo) Completion(ctx context.Context, since *time.Time) (repository.CompletionStats, error) {
	query := `
SELECT
  COUNT(*) FILTER (WHERE status = $1),
  COUNT(*) FILTER (WHERE status = $2),
  AVG(EXTRACT(EPOCH FROM (updated_at - created_at)))
FROM notif_messages
WHERE status IN ($1, $2)`
	args := []any{entity.StatusSent, entity.StatusFailed}
	if since != nil {
		query += ` AND created_at >= $3`
		args = append(args, *since)
	}

	var stats repository.CompletionStats
	var avg sql.NullFloat64
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&stats.Sent, &stats.Failed, &avg); err != nil {
		return repository.CompletionStats{}, fmt.Errorf("Completion: %w", err)
	}
	stats.AvgLatencySeconds = avg.Float64
	stats.HasLatency = avg.Valid
	return stats, nil
}
