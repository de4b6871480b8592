package actions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/dbx"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, a *models.Action) error {
	payload, err := models.EncodePayload(a.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO actions (id, kind, workspace_id, payload, created_at_ms, retry_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Kind), a.WorkspaceID, string(payload), a.CreatedAt.UnixMilli(), a.RetryCount)
	if err != nil {
		return fmt.Errorf("failed to enqueue action: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.Action, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, workspace_id, payload, created_at_ms, retry_count
		 FROM actions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to select actions: %w", err)
	}
	defer rows.Close()

	var result []*models.Action
	for rows.Next() {
		a, err := scanAction(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanAction(scan func(dest ...any) error) (*models.Action, error) {
	var (
		a         models.Action
		kind      string
		payload   string
		createdAt int64
	)
	if err := scan(&a.ID, &kind, &a.WorkspaceID, &payload, &createdAt, &a.RetryCount); err != nil {
		return nil, err
	}
	a.Kind = models.ActionKind(kind)
	a.CreatedAt = time.UnixMilli(createdAt).UTC()

	p, err := models.DecodePayload(a.Kind, []byte(payload))
	if err != nil {
		return nil, err
	}
	a.Payload = p
	return &a, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM actions WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE actions SET retry_count = retry_count + 1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("action %s: %w", id, syncerr.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Escalate(ctx context.Context, id string, failedAt time.Time, reason string) (*models.FailedItem, error) {
	var item *models.FailedItem
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, kind, workspace_id, payload, created_at_ms, retry_count FROM actions WHERE id=?`, id)
		a, err := scanAction(row.Scan)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("action %s: %w", id, syncerr.ErrNotFound)
		}
		if err != nil {
			return err
		}

		payload, err := models.EncodePayload(a.Payload)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO failed_actions (id, kind, workspace_id, payload, created_at_ms, retry_count, failed_at_ms, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET failed_at_ms = excluded.failed_at_ms, reason = excluded.reason`,
			a.ID, string(a.Kind), a.WorkspaceID, string(payload), a.CreatedAt.UnixMilli(), a.RetryCount,
			failedAt.UnixMilli(), reason)
		if err != nil {
			return fmt.Errorf("failed to escalate action: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE id=?`, id); err != nil {
			return fmt.Errorf("failed to remove escalated action: %w", err)
		}

		item = &models.FailedItem{Action: *a, FailedAt: failedAt.UTC(), Reason: reason}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *SQLiteRepository) ListFailed(ctx context.Context) ([]*models.FailedItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, workspace_id, payload, created_at_ms, retry_count, failed_at_ms, reason
		 FROM failed_actions ORDER BY failed_at_ms`)
	if err != nil {
		return nil, fmt.Errorf("failed to select failed actions: %w", err)
	}
	defer rows.Close()

	var result []*models.FailedItem
	for rows.Next() {
		item, err := scanFailed(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanFailed(scan func(dest ...any) error) (*models.FailedItem, error) {
	var (
		item      models.FailedItem
		kind      string
		payload   string
		createdAt int64
		failedAt  int64
	)
	if err := scan(&item.ID, &kind, &item.WorkspaceID, &payload, &createdAt, &item.RetryCount, &failedAt, &item.Reason); err != nil {
		return nil, err
	}
	item.Kind = models.ActionKind(kind)
	item.CreatedAt = time.UnixMilli(createdAt).UTC()
	item.FailedAt = time.UnixMilli(failedAt).UTC()

	p, err := models.DecodePayload(item.Kind, []byte(payload))
	if err != nil {
		return nil, err
	}
	item.Payload = p
	return &item, nil
}

func (r *SQLiteRepository) GetFailed(ctx context.Context, id string) (*models.FailedItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, workspace_id, payload, created_at_ms, retry_count, failed_at_ms, reason
		 FROM failed_actions WHERE id=?`, id)
	item, err := scanFailed(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed item %s: %w", id, syncerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed item: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) Requeue(ctx context.Context, id string) (*models.Action, error) {
	var requeued *models.Action
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, kind, workspace_id, payload, created_at_ms, retry_count, failed_at_ms, reason
			 FROM failed_actions WHERE id=?`, id)
		item, err := scanFailed(row.Scan)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed item %s: %w", id, syncerr.ErrNotFound)
		}
		if err != nil {
			return err
		}

		payload, err := models.EncodePayload(item.Payload)
		if err != nil {
			return err
		}
		// fresh retry budget for the re-drive
		_, err = tx.ExecContext(ctx,
			`INSERT INTO actions (id, kind, workspace_id, payload, created_at_ms, retry_count)
			 VALUES (?, ?, ?, ?, ?, 0)`,
			item.ID, string(item.Kind), item.WorkspaceID, string(payload), item.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to requeue action: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM failed_actions WHERE id=?`, id); err != nil {
			return fmt.Errorf("failed to remove requeued item: %w", err)
		}

		a := item.Action
		a.RetryCount = 0
		requeued = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requeued, nil
}

func (r *SQLiteRepository) DeleteFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_actions WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete failed item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearFailed(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_actions`)
	if err != nil {
		return fmt.Errorf("failed to clear failed items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountFailed(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count failed items: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteByJobID(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM actions
		 WHERE (kind IN (?, ?) AND json_extract(payload, '$.job.id') = ?)
		    OR (kind = ? AND json_extract(payload, '$.job_id') = ?)`,
		string(models.ActionCreateJob), string(models.ActionUpdateJob), jobID,
		string(models.ActionUploadPhoto), jobID)
	if err != nil {
		return fmt.Errorf("failed to delete actions for job: %w", err)
	}
	return nil
}
