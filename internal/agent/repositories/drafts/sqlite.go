package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

// DefaultTTL is how long an autosaved draft stays recoverable. Stale drafts
// are more likely to confuse than to help, so they age out.
const DefaultTTL = 8 * time.Hour

type SQLiteRepository struct {
	db    *sql.DB
	clock clockx.Clock
	ttl   time.Duration
}

func NewSQLiteRepository(db *sql.DB, clock clockx.Clock) *SQLiteRepository {
	return &SQLiteRepository{db: db, clock: clock, ttl: DefaultTTL}
}

func (r *SQLiteRepository) Put(ctx context.Context, d *models.FormDraft) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO drafts (id, job_id, data, saved_at_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET job_id = excluded.job_id, data = excluded.data, saved_at_ms = excluded.saved_at_ms`,
		d.ID, d.JobID, string(d.Data), d.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.FormDraft, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, job_id, data, saved_at_ms FROM drafts WHERE id=?`, id)

	d := &models.FormDraft{}
	var (
		data    string
		savedAt int64
	)
	err := row.Scan(&d.ID, &d.JobID, &data, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft %s: %w", id, syncerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	d.Data = []byte(data)
	d.SavedAt = time.UnixMilli(savedAt).UTC()

	if r.clock.Now().Sub(d.SavedAt) > r.ttl {
		if err := r.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("draft %s expired: %w", id, syncerr.ErrNotFound)
	}
	return d, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PruneExpired(ctx context.Context) (int, error) {
	cutoff := r.clock.Now().Add(-r.ttl).UnixMilli()
	res, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE saved_at_ms < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune drafts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
