package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/agent/store"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, b *models.MediaBlob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media (id, job_id, data, created_at_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET job_id = excluded.job_id, data = excluded.data`,
		b.ID, b.JobID, b.Data, b.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store media blob: %w", store.MapError(err))
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.MediaBlob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, job_id, data, created_at_ms FROM media WHERE id=?`, id)

	b := &models.MediaBlob{}
	var createdAt int64
	err := row.Scan(&b.ID, &b.JobID, &b.Data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", id, syncerr.ErrBlobMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media blob: %w", err)
	}
	b.CreatedAt = time.UnixMilli(createdAt).UTC()
	return b, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media blob: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByJobID(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE job_id=?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete media blobs for job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListIDsByJob(ctx context.Context, jobID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM media WHERE job_id=?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media blobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
