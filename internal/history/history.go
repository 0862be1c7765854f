// Package history keeps an append-only log of completed analyses.
//
// The engine holds no state between requests; the server appends every
// analysis here so learners can review their progress. Two stores are
// provided: [MemStore], a bounded in-memory ring, and [PostgresStore], backed
// by a PostgreSQL table with the analysis stored as JSONB.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// ErrNotFound is returned by [Store.Get] for an unknown ID.
var ErrNotFound = errors.New("history: record not found")

// DefaultLimit is used by [Store.Recent] when limit is not positive.
const DefaultLimit = 20

// Record is one stored analysis.
type Record struct {
	ID        string                  `json:"id"`
	CreatedAt time.Time               `json:"createdAt"`
	Text      string                  `json:"text,omitempty"`
	Language  string                  `json:"language,omitempty"`
	Analysis  *pronunciation.Analysis `json:"analysis"`
	Feedback  string                  `json:"feedback,omitempty"`
}

// Store persists analysis records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append stores rec, assigning ID and CreatedAt when empty, and returns
	// the stored record.
	Append(ctx context.Context, rec Record) (Record, error)

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Get returns the record with the given ID or [ErrNotFound].
	Get(ctx context.Context, id string) (Record, error)
}

// stamp fills the generated fields of rec.
func stamp(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
