package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/mockinterview/pkg/memory"
)

var _ memory.Store = (*Store)(nil)

// Store is a [memory.Store] backed by a [pgxpool.Pool]. All methods are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping checks that the database is reachable. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

const selectColumns = `id, created_at, updated_at, status, config, transcript`

// Create implements [memory.Store].
func (s *Store) Create(ctx context.Context, status memory.Status, config json.RawMessage) (memory.Interview, error) {
	if status == "" {
		status = memory.StatusInProgress
	}
	if !status.Valid() {
		return memory.Interview{}, fmt.Errorf("postgres store: create: unknown status %q", status)
	}

	const q = `
		INSERT INTO interviews (id, status, config)
		VALUES ($1, $2, $3)
		RETURNING ` + selectColumns

	rows, err := s.pool.Query(ctx, q, uuid.NewString(), string(status), nullableJSON(config))
	if err != nil {
		return memory.Interview{}, fmt.Errorf("postgres store: create: %w", err)
	}
	return collectOne(rows, "create")
}

// Get implements [memory.Store].
func (s *Store) Get(ctx context.Context, id string) (memory.Interview, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM interviews WHERE id = $1`, id)
	if err != nil {
		return memory.Interview{}, fmt.Errorf("postgres store: get: %w", err)
	}
	return collectOne(rows, "get")
}

// List implements [memory.Store].
func (s *Store) List(ctx context.Context, limit int) ([]memory.Interview, error) {
	if limit <= 0 {
		limit = memory.DefaultListLimit
	}
	const q = `
		SELECT ` + selectColumns + `
		FROM   interviews
		ORDER  BY created_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanInterview)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	if out == nil {
		out = []memory.Interview{}
	}
	return out, nil
}

// Update implements [memory.Store].
func (s *Store) Update(ctx context.Context, id string, u memory.Update) (memory.Interview, error) {
	if u.Status != "" && !u.Status.Valid() {
		return memory.Interview{}, fmt.Errorf("postgres store: update: unknown status %q", u.Status)
	}

	args := []any{id}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sets := []string{"updated_at = now()"}
	if u.Status != "" {
		sets = append(sets, "status = "+next(string(u.Status)))
	}
	if u.Config != nil {
		sets = append(sets, "config = "+next(nullableJSON(u.Config)))
	}
	if u.Messages != nil {
		data, err := json.Marshal(u.Messages)
		if err != nil {
			return memory.Interview{}, fmt.Errorf("postgres store: update: encode transcript: %w", err)
		}
		sets = append(sets, "transcript = "+next(string(data)))
	}

	q := "UPDATE interviews SET " + strings.Join(sets, ", ") +
		" WHERE id = $1 RETURNING " + selectColumns

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return memory.Interview{}, fmt.Errorf("postgres store: update: %w", err)
	}
	return collectOne(rows, "update")
}

// Delete implements [memory.Store].
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres store: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// DeleteAll implements [memory.Store].
func (s *Store) DeleteAll(ctx context.Context, status memory.Status) (int, error) {
	q, args := `DELETE FROM interviews`, []any(nil)
	if status != "" {
		q, args = q+` WHERE status = $1`, []any{string(status)}
	}
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres store: delete all: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// AppendMessage implements [memory.Store]. The interview row is locked for the
// duration of the transaction so concurrent appends to one interview are
// serialised.
func (s *Store) AppendMessage(ctx context.Context, id string, msg memory.Message) (memory.AppendResult, error) {
	if err := memory.ValidateMessage(msg); err != nil {
		return memory.AppendResult{}, err
	}

	var res memory.AppendResult
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT transcript FROM interviews WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return memory.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock interview: %w", err)
		}

		var messages []memory.Message
		if err := json.Unmarshal(raw, &messages); err != nil {
			return fmt.Errorf("decode transcript: %w", err)
		}

		if i := slices.IndexFunc(messages, func(m memory.Message) bool {
			return m.TranscriptID == msg.TranscriptID
		}); i >= 0 {
			messages[i] = msg
		} else {
			tag, err := tx.Exec(ctx, `
				INSERT INTO message_hashes (interview_id, content_hash)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`,
				id, memory.ContentHash(id, msg.Transcript))
			if err != nil {
				return fmt.Errorf("record hash: %w", err)
			}
			if tag.RowsAffected() == 0 {
				res = memory.AppendResult{Duplicate: true, MessageCount: len(messages)}
				return nil
			}
			messages = append(messages, msg)
		}

		data, err := json.Marshal(messages)
		if err != nil {
			return fmt.Errorf("encode transcript: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE interviews SET transcript = $2, updated_at = now() WHERE id = $1`,
			id, string(data)); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
		res = memory.AppendResult{MessageCount: len(messages)}
		return nil
	})
	if errors.Is(err, memory.ErrNotFound) {
		return memory.AppendResult{}, err
	}
	if err != nil {
		return memory.AppendResult{}, fmt.Errorf("postgres store: append message: %w", err)
	}
	return res, nil
}

// ── scanning ──────────────────────────────────────────────────────────────────

func scanInterview(row pgx.CollectableRow) (memory.Interview, error) {
	var (
		iv         memory.Interview
		status     string
		config     []byte
		transcript []byte
	)
	if err := row.Scan(&iv.ID, &iv.CreatedAt, &iv.UpdatedAt, &status, &config, &transcript); err != nil {
		return memory.Interview{}, err
	}
	iv.Status = memory.Status(status)
	iv.Config = memory.NormalizeConfig(config)
	if err := json.Unmarshal(transcript, &iv.Messages); err != nil {
		return memory.Interview{}, fmt.Errorf("decode transcript: %w", err)
	}
	if iv.Messages == nil {
		iv.Messages = []memory.Message{}
	}
	return iv, nil
}

func collectOne(rows pgx.Rows, op string) (memory.Interview, error) {
	iv, err := pgx.CollectExactlyOneRow(rows, scanInterview)
	if errors.Is(err, pgx.ErrNoRows) {
		return memory.Interview{}, memory.ErrNotFound
	}
	if err != nil {
		return memory.Interview{}, fmt.Errorf("postgres store: %s: %w", op, err)
	}
	return iv, nil
}

// nullableJSON maps an absent config to SQL NULL and passes anything else as
// text for the JSONB column.
func nullableJSON(raw json.RawMessage) any {
	raw = memory.NormalizeConfig(raw)
	if raw == nil {
		return nil
	}
	return string(raw)
}
