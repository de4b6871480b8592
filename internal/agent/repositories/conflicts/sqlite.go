package conflicts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/dbx"
)

// MaxEvents caps the ring. Fifty entries is enough to diagnose a bad sync
// session without turning the store into a log file.
const MaxEvents = 50

type SQLiteRepository struct {
	db  *sql.DB
	cap int
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, cap: MaxEvents}
}

func (r *SQLiteRepository) Append(ctx context.Context, e *models.ConflictEvent) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conflicts (type, object_type, object_id, resolution, ts_ms, diagnostics)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(e.Type), e.ObjectType, e.ObjectID, string(e.Resolution),
			e.Timestamp.UnixMilli(), e.Diagnostics)
		if err != nil {
			return fmt.Errorf("failed to append conflict event: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM conflicts WHERE seq NOT IN
			   (SELECT seq FROM conflicts ORDER BY seq DESC LIMIT ?)`, r.cap)
		if err != nil {
			return fmt.Errorf("failed to trim conflict ring: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.ConflictEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, object_type, object_id, resolution, ts_ms, diagnostics
		 FROM conflicts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to select conflict events: %w", err)
	}
	defer rows.Close()

	var result []*models.ConflictEvent
	for rows.Next() {
		var (
			e          models.ConflictEvent
			typ        string
			resolution string
			ts         int64
		)
		if err := rows.Scan(&typ, &e.ObjectType, &e.ObjectID, &resolution, &ts, &e.Diagnostics); err != nil {
			return nil, err
		}
		e.Type = models.ConflictType(typ)
		e.Resolution = models.Resolution(resolution)
		e.Timestamp = time.UnixMilli(ts).UTC()
		result = append(result, &e)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conflicts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conflict events: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conflicts`)
	if err != nil {
		return fmt.Errorf("failed to clear conflict events: %w", err)
	}
	return nil
}
