package orphans

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const orphanColumns = `photo_id, job_id, job_title, capture_type, captured_at_ms,
	latitude, longitude, reason, orphaned_at_ms, recovery_attempts`

func (r *SQLiteRepository) Add(ctx context.Context, o *models.OrphanRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orphans (`+orphanColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(photo_id) DO UPDATE SET reason = excluded.reason, orphaned_at_ms = excluded.orphaned_at_ms`,
		o.PhotoID, o.JobID, o.JobTitle, o.CaptureType, o.CapturedAt.UnixMilli(),
		o.Latitude, o.Longitude, o.Reason, o.OrphanedAt.UnixMilli(), o.RecoveryAttempts)
	if err != nil {
		return fmt.Errorf("failed to record orphan: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.OrphanRecord, error) {
	return r.query(ctx, `SELECT `+orphanColumns+` FROM orphans ORDER BY orphaned_at_ms`)
}

func (r *SQLiteRepository) ListByJob(ctx context.Context, jobID string) ([]*models.OrphanRecord, error) {
	return r.query(ctx, `SELECT `+orphanColumns+` FROM orphans WHERE job_id=? ORDER BY orphaned_at_ms`, jobID)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]*models.OrphanRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select orphans: %w", err)
	}
	defer rows.Close()

	var result []*models.OrphanRecord
	for rows.Next() {
		var (
			o          models.OrphanRecord
			capturedAt int64
			orphanedAt int64
		)
		err := rows.Scan(&o.PhotoID, &o.JobID, &o.JobTitle, &o.CaptureType, &capturedAt,
			&o.Latitude, &o.Longitude, &o.Reason, &orphanedAt, &o.RecoveryAttempts)
		if err != nil {
			return nil, err
		}
		o.CapturedAt = time.UnixMilli(capturedAt).UTC()
		o.OrphanedAt = time.UnixMilli(orphanedAt).UTC()
		result = append(result, &o)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orphans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orphans: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, photoID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orphans WHERE photo_id=?`, photoID)
	if err != nil {
		return fmt.Errorf("failed to delete orphan: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRecoveryAttempts(ctx context.Context, photoID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orphans SET recovery_attempts = recovery_attempts + 1 WHERE photo_id=?`, photoID)
	if err != nil {
		return fmt.Errorf("failed to increment recovery attempts: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("orphan %s: %w", photoID, syncerr.ErrNotFound)
	}
	return nil
}
