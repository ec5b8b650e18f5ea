package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversion_history (
	id          UUID PRIMARY KEY,
	output_name TEXT        NOT NULL,
	source_name TEXT        NOT NULL DEFAULT '',
	row_count   INTEGER     NOT NULL,
	bytes       BIGINT      NOT NULL,
	delimiter   TEXT        NOT NULL,
	engine      TEXT        NOT NULL,
	duration_ms BIGINT      NOT NULL,
	client_ip   TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversion_history_created_at_idx
	ON conversion_history (created_at DESC);
`

const insertSQL = `
INSERT INTO conversion_history
	(id, output_name, source_name, row_count, bytes, delimiter, engine, duration_ms, client_ip, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const recentSQL = `
SELECT id, output_name, source_name, row_count, bytes, delimiter, engine, duration_ms, client_ip, created_at
FROM conversion_history
ORDER BY created_at DESC
LIMIT $1`

// PgHistory stores entries in the conversion_history table.
type PgHistory struct {
	db DBTX
}

// NewPgHistory wraps db. Call EnsureSchema once before use.
func NewPgHistory(db DBTX) *PgHistory {
	return &PgHistory{db: db}
}

// EnsureSchema creates the table and index if they do not exist.
func (p *PgHistory) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create conversion_history: %w", err)
	}
	return nil
}

// Record implements Store.
func (p *PgHistory) Record(ctx context.Context, e Entry) error {
	e = prepare(e)
	_, err := p.db.Exec(ctx, insertSQL,
		e.ID, e.OutputName, e.SourceName, e.Rows, e.Bytes,
		e.Delimiter, e.Engine, e.Duration.Milliseconds(), e.ClientIP, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion history: %w", err)
	}
	return nil
}

// Recent implements Store.
func (p *PgHistory) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.db.Query(ctx, recentSQL, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query conversion history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("scan conversion history: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e          Entry
		durationMS int64
	)
	err := row.Scan(&e.ID, &e.OutputName, &e.SourceName, &e.Rows, &e.Bytes,
		&e.Delimiter, &e.Engine, &durationMS, &e.ClientIP, &e.CreatedAt)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return e, err
}
