// Package postgres provides a PostgreSQL-backed [memory.Store].
//
// Interviews live in a single table with the transcript kept as a JSONB
// array. Content hashes used for deduplication sit in a side table keyed by
// (interview_id, content_hash) so the uniqueness check is enforced by the
// database.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	iv, _ := store.Create(ctx, memory.StatusInProgress, cfg)
//	res, _ := store.AppendMessage(ctx, iv.ID, msg)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlInterviews = `
CREATE TABLE IF NOT EXISTS interviews (
    id          TEXT         PRIMARY KEY,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    status      TEXT         NOT NULL DEFAULT 'in_progress',
    config      JSONB,
    transcript  JSONB        NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_interviews_created_at
    ON interviews (created_at DESC);

CREATE INDEX IF NOT EXISTS idx_interviews_status
    ON interviews (status);
`

const ddlMessageHashes = `
CREATE TABLE IF NOT EXISTS message_hashes (
    interview_id  TEXT         NOT NULL REFERENCES interviews (id) ON DELETE CASCADE,
    content_hash  TEXT         NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (interview_id, content_hash)
);
`

// Migrate creates the interview tables if they do not exist. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlInterviews, ddlMessageHashes} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
