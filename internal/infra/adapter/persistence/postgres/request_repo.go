package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/repository"
)

// insertChunkSize bounds the number of message rows per INSERT statement so a
// large recipient batch never exceeds the driver's parameter limit.
const insertChunkSize = 500

const requestColumns = `id, client_id, idempotency_key, correlation_id, channel, priority,
template_subject, template_body_inline, template_body_path,
requested_count, accepted_count, pending_count, sent_count, failed_count, cancelled_count,
status, scheduled_at, created_at, updated_at`

type RequestRepo struct {
	db *sql.DB
}

func NewRequestRepo(db *sql.DB) repository.RequestRepository {
	return &RequestRepo{db: db}
}

func scanRequest(row interface{ Scan(...any) error }) (*entity.Request, error) {
	var req entity.Request
	var idempotencyKey sql.NullString
	err := row.Scan(&req.ID, &req.ClientID, &idempotencyKey, &req.CorrelationID,
		&req.Channel, &req.Priority,
		&req.Template.Subject, &req.Template.Body, &req.Template.BodyPath,
		&req.RequestedCount, &req.AcceptedCount, &req.PendingCount,
		&req.SentCount, &req.FailedCount, &req.CancelledCount,
		&req.Status, &req.ScheduledAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.IdempotencyKey = idempotencyKey.String
	return &req, nil
}

func (repo *RequestRepo) CreateWithMessages(ctx context.Context, req *entity.Request, msgs []*entity.Message) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CreateWithMessages: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertRequest = `
INSERT INTO notif_requests (` + requestColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	var idempotencyKey sql.NullString
	if req.IdempotencyKey != "" {
		idempotencyKey = sql.NullString{String: req.IdempotencyKey, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, insertRequest,
		req.ID, req.ClientID, idempotencyKey, req.CorrelationID, req.Channel, req.Priority,
		req.Template.Subject, req.Template.Body, req.Template.BodyPath,
		req.RequestedCount, req.AcceptedCount, req.PendingCount,
		req.SentCount, req.FailedCount, req.CancelledCount,
		req.Status, req.ScheduledAt, req.CreatedAt, req.UpdatedAt,
	); err != nil {
		return fmt.Errorf("CreateWithMessages: insert request: %w", err)
	}

	for start := 0; start < len(msgs); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(msgs) {
			end = len(msgs)
		}
		if err := insertMessageChunk(ctx, tx, msgs[start:end]); err != nil {
			return fmt.Errorf("CreateWithMessages: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("CreateWithMessages: commit: %w", err)
	}
	return nil
}

func insertMessageChunk(ctx context.Context, tx *sql.Tx, msgs []*entity.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	const cols = 13
	placeholders := make([]string, 0, len(msgs))
	args := make([]any, 0, len(msgs)*cols)
	for i, m := range msgs {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		vars, err := json.Marshal(m.Vars)
		if err != nil {
			return fmt.Errorf("insert messages: marshal vars: %w", err)
		}
		args = append(args, m.ID, m.RequestID, m.To, vars, m.Channel, m.Priority,
			m.Status, m.DeliveryState, m.Attempts, m.ProviderMessageID, m.LastError,
			m.CreatedAt, m.UpdatedAt)
	}

	query := `
INSERT INTO notif_messages (id, request_id, recipient, vars, channel, priority,
status, delivery_state, attempts, provider_message_id, last_error, created_at, updated_at)
VALUES ` + strings.Join(placeholders, ", ")

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert messages: %w", err)
	}
	return nil
}

func (repo *RequestRepo) Get(ctx context.Context, id string) (*entity.Request, error) {
	query := `
SELECT ` + requestColumns + `
FROM notif_requests
WHERE id = $1
LIMIT 1`
	req, err := scanRequest(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return req, nil
}

func (repo *RequestRepo) GetByIdempotencyKey(ctx context.Context, clientID, key string) (*entity.Request, error) {
	query := `
SELECT ` + requestColumns + `
FROM notif_requests
WHERE client_id = $1 AND idempotency_key = $2
LIMIT 1`
	req, err := scanRequest(repo.db.QueryRowContext(ctx, query, clientID, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return req, nil
}

func (repo *RequestRepo) List(ctx context.Context, clientID string, f repository.RequestFilter) ([]*entity.Request, int64, error) {
	where := []string{"client_id = $1"}
	args := []any{clientID}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Channel != nil {
		add("channel = $%d", *f.Channel)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	countQuery := `SELECT COUNT(*) FROM notif_requests WHERE ` + strings.Join(where, " AND ")
	var total int64
	if err := repo.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := `
SELECT ` + requestColumns + `
FROM notif_requests
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY created_at DESC
` + fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	requests := make([]*entity.Request, 0, limit)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("List: Scan: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

func (repo *RequestRepo) ClaimDueScheduled(ctx context.Context, now time.Time) ([]*entity.Request, error) {
	// Single-statement claim: concurrent runs cannot pick up the same request
	// because the status flip and the selection are one atomic UPDATE.
	query := `
UPDATE notif_requests
SET status = $1, updated_at = $2
WHERE scheduled_at IS NOT NULL AND scheduled_at <= $3 AND status = $4
RETURNING ` + requestColumns

	rows, err := repo.db.QueryContext(ctx, query, entity.StatusProcessing, now, now, entity.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("ClaimDueScheduled: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var claimed []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimDueScheduled: Scan: %w", err)
		}
		claimed = append(claimed, req)
	}
	return claimed, rows.Err()
}

func (repo *RequestRepo) ClearSchedule(ctx context.Context, id string) error {
	const query = `UPDATE notif_requests SET scheduled_at = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("ClearSchedule: %w", err)
	}
	return nil
}

func (repo *RequestRepo) ReleaseClaim(ctx context.Context, id string) error {
	const query = `UPDATE notif_requests SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`
	if _, err := repo.db.ExecContext(ctx, query, id, entity.StatusPending, entity.StatusProcessing); err != nil {
		return fmt.Errorf("ReleaseClaim: %w", err)
	}
	return nil
}

func (repo *RequestRepo) ApplyCounterDeltas(ctx context.Context, id string, sent, failed int64) (repository.FlushOutcome, error) {
	const query = `
UPDATE notif_requests
SET sent_count = sent_count + $2,
    failed_count = failed_count + $3,
    pending_count = GREATEST(pending_count - $4, 0),
    updated_at = NOW()
WHERE id = $1
RETURNING pending_count`

	var pending int
	err := repo.db.QueryRowContext(ctx, query, id, sent, failed, sent+failed).Scan(&pending)
	if err == sql.ErrNoRows {
		return repository.FlushOutcome{}, nil
	}
	if err != nil {
		return repository.FlushOutcome{}, fmt.Errorf("ApplyCounterDeltas: %w", err)
	}

	outcome := repository.FlushOutcome{Applied: true}
	if pending == 0 {
		// Close only requests still in flight; a cancellation that already
		// closed the row must not be overwritten.
		const closeQuery = `
UPDATE notif_requests SET status = $2, updated_at = NOW()
WHERE id = $1 AND pending_count = 0 AND status IN ($3, $4)`
		res, err := repo.db.ExecContext(ctx, closeQuery, id, entity.StatusSent, entity.StatusPending, entity.StatusProcessing)
		if err != nil {
			return outcome, fmt.Errorf("ApplyCounterDeltas: close: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			outcome.Closed = true
		}
	}
	return outcome, nil
}

func (repo *RequestRepo) CountsByStatus(ctx context.Context) (map[entity.Status]int64, error) {
	const query = `SELECT status, COUNT(*) FROM notif_requests GROUP BY status`
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
