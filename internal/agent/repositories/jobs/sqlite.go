package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
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

const jobColumns = `id, workspace_id, title, status, notes, location, technician_id,
	photos, signature_id, safety_checklist, sync_status, updated_at_ms, sealed_at_ms, evidence_hash`

// Upsert writes j by id inside one transaction. It enforces two store-level
// invariants: a sealed row is never overwritten by an older unsealed
// version, and photo refs that still await upload are never dropped by a
// partial update.
func (r *SQLiteRepository) Upsert(ctx context.Context, j *models.Job) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := getByID(ctx, tx, j.ID)
		if err != nil && !errors.Is(err, syncerr.ErrNotFound) {
			return err
		}

		if existing != nil {
			if err := guardSealed(existing, j); err != nil {
				return err
			}
			j.Photos = mergePendingPhotos(existing.Photos, j.Photos)
		}
		return put(ctx, tx, j)
	})
}

// Replace writes j as-is. The sealed guard still applies; everything else
// about the previous row is overwritten.
func (r *SQLiteRepository) Replace(ctx context.Context, j *models.Job) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := getByID(ctx, tx, j.ID)
		if err != nil && !errors.Is(err, syncerr.ErrNotFound) {
			return err
		}
		if existing != nil {
			if err := guardSealed(existing, j); err != nil {
				return err
			}
		}
		return put(ctx, tx, j)
	})
}

func guardSealed(existing, incoming *models.Job) error {
	if existing.Sealed() && !incoming.Sealed() && !incoming.NewerThan(existing) {
		return fmt.Errorf("job %s: %w", existing.ID, syncerr.ErrSealed)
	}
	return nil
}

// mergePendingPhotos keeps refs from the stored row that have no remote URL
// yet and are absent from the incoming snapshot.
func mergePendingPhotos(stored, incoming []models.PhotoRef) []models.PhotoRef {
	seen := make(map[string]struct{}, len(incoming))
	for _, p := range incoming {
		seen[p.ID] = struct{}{}
	}
	merged := incoming
	for _, p := range stored {
		if _, ok := seen[p.ID]; !ok && !p.Uploaded() {
			merged = append(merged, p)
		}
	}
	return merged
}

func put(ctx context.Context, tx dbx.DBTX, j *models.Job) error {
	photos, err := json.Marshal(j.Photos)
	if err != nil {
		return fmt.Errorf("encode photos: %w", err)
	}
	if j.Photos == nil {
		photos = []byte("[]")
	}

	var sealedAt sql.NullInt64
	if j.Sealed() {
		sealedAt = sql.NullInt64{Int64: j.SealedAt.UnixMilli(), Valid: true}
	}
	var checklist sql.NullString
	if len(j.SafetyChecklist) > 0 {
		checklist = sql.NullString{String: string(j.SafetyChecklist), Valid: true}
	}

	query := `INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			title = excluded.title,
			status = excluded.status,
			notes = excluded.notes,
			location = excluded.location,
			technician_id = excluded.technician_id,
			photos = excluded.photos,
			signature_id = excluded.signature_id,
			safety_checklist = excluded.safety_checklist,
			sync_status = excluded.sync_status,
			updated_at_ms = excluded.updated_at_ms,
			sealed_at_ms = excluded.sealed_at_ms,
			evidence_hash = excluded.evidence_hash
	`
	_, err = tx.ExecContext(ctx, query,
		j.ID, j.WorkspaceID, j.Title, j.Status, j.Notes, j.Location, j.TechnicianID,
		string(photos), j.SignatureID, checklist, string(j.SyncStatus), j.UpdatedAt.UnixMilli(), sealedAt, j.EvidenceHash)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	return getByID(ctx, r.db, id)
}

func getByID(ctx context.Context, db dbx.DBTX, id string) (*models.Job, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, syncerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (r *SQLiteRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE workspace_id=? ORDER BY updated_at_ms DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs: %w", err)
	}
	defer rows.Close()

	var result []*models.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanJob(scan func(dest ...any) error) (*models.Job, error) {
	var (
		j         models.Job
		photos    string
		status    string
		checklist sql.NullString
		updatedAt int64
		sealedAt  sql.NullInt64
	)
	err := scan(&j.ID, &j.WorkspaceID, &j.Title, &j.Status, &j.Notes, &j.Location, &j.TechnicianID,
		&photos, &j.SignatureID, &checklist, &status, &updatedAt, &sealedAt, &j.EvidenceHash)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(photos), &j.Photos); err != nil {
		return nil, fmt.Errorf("decode photos: %w", err)
	}
	if checklist.Valid {
		j.SafetyChecklist = json.RawMessage(checklist.String)
	}
	j.SyncStatus = models.SyncStatus(status)
	j.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if sealedAt.Valid {
		t := time.UnixMilli(sealedAt.Int64).UTC()
		j.SealedAt = &t
	}
	return &j, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetSyncStatus(ctx context.Context, id string, status models.SyncStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE jobs SET sync_status=? WHERE id=?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("job %s: %w", id, syncerr.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) SetPhotoURL(ctx context.Context, jobID, photoID, url string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		j, err := getByID(ctx, tx, jobID)
		if err != nil {
			return err
		}
		found := false
		for i := range j.Photos {
			if j.Photos[i].ID == photoID {
				j.Photos[i].URL = url
				found = true
				break
			}
		}
		if !found {
			j.Photos = append(j.Photos, models.PhotoRef{ID: photoID, URL: url})
		}
		return put(ctx, tx, j)
	})
}
