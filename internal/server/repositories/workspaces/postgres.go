// Package workspaces provides a PostgreSQL-backed repository for tenant
// workspaces and their shared secrets.
package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldsync/fieldsync/internal/dbx"
	"github.com/fieldsync/fieldsync/internal/server/models"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, ws *models.Workspace) error {
	query := `
		INSERT INTO workspaces (id, name, secret_hash)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, ws.ID, ws.Name, ws.SecretHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Workspace, error) {
	query := `
		SELECT id, name, secret_hash FROM workspaces
		WHERE id = $1
	`
	ws := &models.Workspace{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&ws.ID, &ws.Name, &ws.SecretHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, syncerr.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ws, nil
}
