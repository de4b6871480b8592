// Package jobs provides the PostgreSQL-backed authoritative job store.
// Rows are kept as JSONB payloads in the wire format so the server never
// needs to re-encode what devices exchange.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fieldsync/fieldsync/internal/dbx"
	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or replaces a job row and returns the stored form.
// A job that is already sealed rejects any further change with
// syncerr.ErrSealed; re-delivery of the same seal is idempotent.
func (r *PostgresRepository) Upsert(ctx context.Context, row rpc.JobRow) (rpc.JobRow, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return rpc.JobRow{}, fmt.Errorf("marshal job: %w", err)
	}

	query := `
		INSERT INTO jobs (id, workspace_id, payload, updated_at_ms, sealed_at_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload,
		    updated_at_ms = EXCLUDED.updated_at_ms,
		    sealed_at_ms = EXCLUDED.sealed_at_ms
		WHERE jobs.sealed_at_ms = 0 OR jobs.sealed_at_ms = EXCLUDED.sealed_at_ms
		RETURNING payload
	`

	var stored []byte
	err = r.db.QueryRowContext(ctx, query,
		row.ID, row.WorkspaceID, payload, row.UpdatedAtMs, row.SealedAtMs).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rpc.JobRow{}, syncerr.ErrSealed
		}
		return rpc.JobRow{}, fmt.Errorf("db error: %w", err)
	}

	var out rpc.JobRow
	if err := json.Unmarshal(stored, &out); err != nil {
		return rpc.JobRow{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (rpc.JobRow, error) {
	query := `
		SELECT payload FROM jobs
		WHERE id = $1
	`
	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rpc.JobRow{}, syncerr.ErrNotFound
		}
		return rpc.JobRow{}, fmt.Errorf("db error: %w", err)
	}

	var row rpc.JobRow
	if err := json.Unmarshal(payload, &row); err != nil {
		return rpc.JobRow{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return row, nil
}

// PullByWorkspace returns every job in the workspace, most recently
// updated first.
func (r *PostgresRepository) PullByWorkspace(ctx context.Context, workspaceID string) ([]rpc.JobRow, error) {
	query := `
		SELECT payload FROM jobs
		WHERE workspace_id = $1
		ORDER BY updated_at_ms DESC
	`
	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []rpc.JobRow
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		var row rpc.JobRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM jobs
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
