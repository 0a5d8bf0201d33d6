package db

import (
	"database/sql"
)

// MigrateUp creates the notification tables and their indexes. Every statement
// is idempotent, so the migration can run on every startup.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notif_requests (
    id                   UUID PRIMARY KEY,
    client_id            TEXT NOT NULL,
    idempotency_key      TEXT,
    correlation_id       TEXT NOT NULL,
    channel              VARCHAR(10) NOT NULL,
    priority             VARCHAR(10) NOT NULL,
    template_subject     TEXT NOT NULL DEFAULT '',
    template_body_inline TEXT NOT NULL DEFAULT '',
    template_body_path   TEXT NOT NULL DEFAULT '',
    requested_count      INTEGER NOT NULL DEFAULT 0,
    accepted_count       INTEGER NOT NULL DEFAULT 0,
    pending_count        INTEGER NOT NULL DEFAULT 0,
    sent_count           INTEGER NOT NULL DEFAULT 0,
    failed_count         INTEGER NOT NULL DEFAULT 0,
    cancelled_count      INTEGER NOT NULL DEFAULT 0,
    status               VARCHAR(16) NOT NULL DEFAULT 'pending',
    scheduled_at         TIMESTAMPTZ,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notif_messages (
    id                  UUID PRIMARY KEY,
    request_id          UUID NOT NULL REFERENCES notif_requests(id) ON DELETE CASCADE,
    recipient           TEXT NOT NULL,
    vars                JSONB NOT NULL DEFAULT '{}',
    channel             VARCHAR(10) NOT NULL,
    priority            VARCHAR(10) NOT NULL,
    status              VARCHAR(16) NOT NULL DEFAULT 'pending',
    delivery_state      VARCHAR(16) NOT NULL DEFAULT 'queued',
    attempts            INTEGER NOT NULL DEFAULT 0,
    provider_message_id TEXT NOT NULL DEFAULT '',
    last_error          TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	indexes := []string{
		// Replay lookups; the partial unique index doubles as the idempotency
		// guarantee for clients that do supply a key.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_notif_requests_idempotency
    ON notif_requests(client_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		// List endpoint: newest-first per client, with status/channel filters.
		`CREATE INDEX IF NOT EXISTS idx_notif_requests_client_created
    ON notif_requests(client_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_requests_status ON notif_requests(status)`,
		// Scheduled-dispatch sweep.
		`CREATE INDEX IF NOT EXISTS idx_notif_requests_scheduled
    ON notif_requests(scheduled_at) WHERE scheduled_at IS NOT NULL`,
		// Pending-message fetch during dispatch and cancellation.
		`CREATE INDEX IF NOT EXISTS idx_notif_messages_request_status
    ON notif_messages(request_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_messages_status ON notif_messages(status)`,
		// Completion window aggregation for the metrics summary.
		`CREATE INDEX IF NOT EXISTS idx_notif_messages_updated_at
    ON notif_messages(updated_at) WHERE status IN ('sent', 'failed')`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}
