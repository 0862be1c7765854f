package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

const ddlAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id          UUID         PRIMARY KEY,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    text        TEXT         NOT NULL DEFAULT '',
    language    TEXT         NOT NULL DEFAULT '',
    analysis    JSONB        NOT NULL,
    feedback    TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at
    ON analyses (created_at DESC);

CREATE INDEX IF NOT EXISTS idx_analyses_drill_words
    ON analyses USING GIN ((analysis->'suggestedDrillWords'));
`

// Migrate creates the analyses table and its indexes. It is idempotent and
// safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlAnalyses); err != nil {
		return fmt.Errorf("history migrate: %w", err)
	}
	return nil
}

// PostgresStore is a [Store] backed by the analyses table.
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database at dsn, verifies the connection
// and runs [Migrate].
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Ping reports whether the database is reachable. Used as a readiness check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Append implements [Store].
func (s *PostgresStore) Append(ctx context.Context, rec Record) (Record, error) {
	rec = stamp(rec)
	doc, err := json.Marshal(rec.Analysis)
	if err != nil {
		return Record{}, fmt.Errorf("history store: encode analysis: %w", err)
	}

	const q = `
		INSERT INTO analyses (id, created_at, text, language, analysis, feedback)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.pool.Exec(ctx, q, rec.ID, rec.CreatedAt, rec.Text, rec.Language, doc, rec.Feedback); err != nil {
		return Record{}, fmt.Errorf("history store: append: %w", err)
	}
	return rec, nil
}

// Recent implements [Store].
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	const q = `
		SELECT id::text, created_at, text, language, analysis, feedback
		FROM   analyses
		ORDER  BY created_at DESC, id
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history store: recent: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("history store: recent: %w", err)
	}
	return records, nil
}

// Get implements [Store]. An ID that is not a UUID is reported as
// [ErrNotFound].
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}

	const q = `
		SELECT id::text, created_at, text, language, analysis, feedback
		FROM   analyses
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, uid)
	if err != nil {
		return Record{}, fmt.Errorf("history store: get: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("history store: get: %w", err)
	}
	return rec, nil
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var (
		rec Record
		doc []byte
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Text, &rec.Language, &doc, &rec.Feedback); err != nil {
		return Record{}, err
	}
	rec.Analysis = &pronunciation.Analysis{}
	if err := json.Unmarshal(doc, rec.Analysis); err != nil {
		return Record{}, fmt.Errorf("decode analysis %s: %w", rec.ID, err)
	}
	return rec, nil
}
