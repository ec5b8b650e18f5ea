// Package history records completed conversions.
//
// Two stores are provided: MemoryHistory, a bounded in-process ring used
// when no database is configured, and PgHistory, backed by PostgreSQL.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is used by Recent callers that pass a non-positive limit.
const DefaultLimit = 50

// MaxLimit caps a single Recent call.
const MaxLimit = 500

// Entry describes one finished conversion.
type Entry struct {
	ID         uuid.UUID     `json:"id"`
	OutputName string        `json:"output_name"`
	SourceName string        `json:"source_name"`
	Rows       int           `json:"rows"`
	Bytes      int64         `json:"bytes"`
	Delimiter  string        `json:"delimiter"`
	Engine     string        `json:"engine"`
	Duration   time.Duration `json:"duration_ns"`
	ClientIP   string        `json:"client_ip,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store persists entries.
type Store interface {
	// Record stores e. A zero ID or CreatedAt is filled in.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// prepare fills generated fields.
func prepare(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// clampLimit normalises a caller supplied limit.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
