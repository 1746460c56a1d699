package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an operation does not exist
var ErrNotFound = errors.New("push operation not found")

const operationColumns = `id, funnel_id, status, total_items, completed_items, failed_items, skipped_items,
	cached, content_hash, custom_values_pushed, error, error_stack, started_at, finished_at, duration_ms`

// Store persists operations in the push_operations table. Queries use only
// portable SQL so the same store runs on PostgreSQL and SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new ledger store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the push_operations table
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS push_operations (
			id TEXT PRIMARY KEY,
			funnel_id TEXT NOT NULL,
			status TEXT NOT NULL,
			total_items INTEGER NOT NULL DEFAULT 0,
			completed_items INTEGER NOT NULL DEFAULT 0,
			failed_items INTEGER NOT NULL DEFAULT 0,
			skipped_items INTEGER NOT NULL DEFAULT 0,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			content_hash TEXT NOT NULL DEFAULT '',
			custom_values_pushed TEXT NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			error_stack TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_push_operations_funnel_started ON push_operations (funnel_id, started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate push_operations: %w", err)
		}
	}
	return nil
}

// Create inserts a new operation
func (s *Store) Create(ctx context.Context, op *Operation) error {
	pushed, err := json.Marshal(op.Pushed)
	if err != nil {
		return fmt.Errorf("failed to encode pushed values: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO push_operations (`+operationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		op.ID, op.FunnelID, string(op.Status), op.TotalItems, op.CompletedItems, op.FailedItems, op.SkippedItems,
		op.Cached, op.ContentHash, string(pushed), op.Error, op.ErrorStack,
		op.StartedAt.UTC(), nullTime(op.FinishedAt), op.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to create push operation: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of an operation
func (s *Store) Update(ctx context.Context, op *Operation) error {
	pushed, err := json.Marshal(op.Pushed)
	if err != nil {
		return fmt.Errorf("failed to encode pushed values: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE push_operations SET
			status = $1, total_items = $2, completed_items = $3, failed_items = $4, skipped_items = $5,
			cached = $6, content_hash = $7, custom_values_pushed = $8, error = $9, error_stack = $10,
			finished_at = $11, duration_ms = $12
		WHERE id = $13`,
		string(op.Status), op.TotalItems, op.CompletedItems, op.FailedItems, op.SkippedItems,
		op.Cached, op.ContentHash, string(pushed), op.Error, op.ErrorStack,
		nullTime(op.FinishedAt), op.DurationMS, op.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update push operation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads an operation by id
func (s *Store) Get(ctx context.Context, id string) (*Operation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM push_operations WHERE id = $1`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return op, err
}

// ListByFunnel returns the most recent operations of a funnel, newest first
func (s *Store) ListByFunnel(ctx context.Context, funnelID string, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+operationColumns+` FROM push_operations
		WHERE funnel_id = $1 ORDER BY started_at DESC LIMIT $2`, funnelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list push operations: %w", err)
	}
	defer rows.Close()

	ops := []*Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// LatestFinished returns the newest operation of a funnel that is no longer
// running, whatever its outcome, or nil when none finished yet. A partial or
// failed run may have written to the CRM after the last completed one.
func (s *Store) LatestFinished(ctx context.Context, funnelID string) (*Operation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM push_operations
		WHERE funnel_id = $1 AND status <> $2 ORDER BY started_at DESC LIMIT 1`, funnelID, string(StatusInProgress))
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return op, err
}

// FunnelsWithLatestStatus lists funnels whose most recent operation has the
// given status, oldest first.
func (s *Store) FunnelsWithLatestStatus(ctx context.Context, status Status, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT p.funnel_id FROM push_operations p
		WHERE p.status = $1
		AND p.started_at = (SELECT MAX(q.started_at) FROM push_operations q WHERE q.funnel_id = p.funnel_id)
		ORDER BY p.started_at ASC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels by status: %w", err)
	}
	defer rows.Close()

	var funnels []string
	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			funnels = append(funnels, id)
		}
	}
	return funnels, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*Operation, error) {
	var (
		op         Operation
		status     string
		pushed     string
		finishedAt sql.NullTime
	)
	err := row.Scan(&op.ID, &op.FunnelID, &status, &op.TotalItems, &op.CompletedItems, &op.FailedItems,
		&op.SkippedItems, &op.Cached, &op.ContentHash, &pushed, &op.Error, &op.ErrorStack,
		&op.StartedAt, &finishedAt, &op.DurationMS)
	if err != nil {
		return nil, err
	}
	op.Status = Status(status)
	op.StartedAt = op.StartedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		op.FinishedAt = &t
	}
	if pushed != "" {
		if err := json.Unmarshal([]byte(pushed), &op.Pushed); err != nil {
			return nil, fmt.Errorf("failed to decode pushed values of %s: %w", op.ID, err)
		}
	}
	return &op, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
