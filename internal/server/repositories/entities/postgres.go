// Package entities provides a PostgreSQL-backed store for the simple
// workspace records (clients, technicians, safety checks) that sync by
// plain upsert.
package entities

import (
	"context"
	"fmt"

	"github.com/fieldsync/fieldsync/internal/dbx"
	"github.com/fieldsync/fieldsync/internal/rpc"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, row rpc.EntityRow) error {
	query := `
		INSERT INTO entities (entity, id, workspace_id, payload, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity, id, workspace_id) DO UPDATE
		SET payload = EXCLUDED.payload,
		    updated_at_ms = EXCLUDED.updated_at_ms
	`
	if _, err := r.db.ExecContext(ctx, query,
		row.Entity, row.ID, row.WorkspaceID, []byte(row.Payload), row.UpdatedAtMs); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, entity, id, workspaceID string) error {
	query := `
		DELETE FROM entities
		WHERE entity = $1 AND id = $2 AND workspace_id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, entity, id, workspaceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByWorkspace(ctx context.Context, entity, workspaceID string) ([]rpc.EntityRow, error) {
	query := `
		SELECT entity, id, workspace_id, payload, updated_at_ms FROM entities
		WHERE entity = $1 AND workspace_id = $2
		ORDER BY updated_at_ms DESC
	`
	rows, err := r.db.QueryContext(ctx, query, entity, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []rpc.EntityRow
	for rows.Next() {
		var row rpc.EntityRow
		var payload []byte
		if err := rows.Scan(&row.Entity, &row.ID, &row.WorkspaceID, &payload, &row.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		row.Payload = payload
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
