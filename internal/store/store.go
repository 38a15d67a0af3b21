// internal/store/store.go

// Package store persists vision cost entries to PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const costTable = "vlm_costs"

var costColumns = []string{
	"session_id", "provider", "model", "operation",
	"input_tokens", "output_tokens", "images", "cost_usd", "called_at",
}

const createCostTable = `
CREATE TABLE IF NOT EXISTS vlm_costs (
    id            BIGSERIAL PRIMARY KEY,
    session_id    TEXT NOT NULL,
    provider      TEXT NOT NULL,
    model         TEXT NOT NULL,
    operation     TEXT NOT NULL,
    input_tokens  INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    images        INTEGER NOT NULL,
    cost_usd      DOUBLE PRECISION NOT NULL,
    called_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS vlm_costs_session_idx ON vlm_costs (session_id);
`

const selectTotals = `
SELECT provider, COUNT(*), COALESCE(SUM(cost_usd), 0)
FROM vlm_costs
WHERE $1 = '' OR session_id = $1
GROUP BY provider
ORDER BY provider
`

// Store is the cost ledger. It satisfies engine.CostLedger.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// Open connects a pool to url, ensures the schema exists and returns the
// store with a function that closes the pool.
func Open(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// EnsureSchema creates the ledger table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createCostTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", costTable, err)
	}
	return nil
}

// Append copies entries into the ledger under sessionID and returns how many
// rows were written.
func (s *Store) Append(ctx context.Context, sessionID string, entries []schemas.CostEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{
			sessionID, e.Provider, e.Model, e.Operation,
			e.InputTokens, e.OutputTokens, e.Images, e.CostUSD,
			time.UnixMilli(e.TimestampMs).UTC(),
		}
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{costTable}, costColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy cost entries: %w", err)
	}
	if int(n) != len(entries) {
		return n, fmt.Errorf("mismatch in copied cost entries: expected %d, got %d", len(entries), n)
	}
	s.log.Debug("Persisted vision costs.", zap.String("session_id", sessionID), zap.Int64("rows", n))
	return n, nil
}

// Totals aggregates the ledger per provider. An empty sessionID covers every
// session.
func (s *Store) Totals(ctx context.Context, sessionID string) (map[string]schemas.CostBucket, error) {
	rows, err := s.pool.Query(ctx, selectTotals, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]schemas.CostBucket)
	for rows.Next() {
		var (
			provider string
			calls    int64
			total    float64
		)
		if err := rows.Scan(&provider, &calls, &total); err != nil {
			return nil, fmt.Errorf("failed to scan cost totals: %w", err)
		}
		out[provider] = schemas.CostBucket{Cost: total, Calls: int(calls)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cost totals: %w", err)
	}
	return out, nil
}
