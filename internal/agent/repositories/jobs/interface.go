// Package jobs persists local job records.
package jobs

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/agent/models"
)

type Repository interface {
	// Upsert writes the job by id. Photo references already stored locally
	// that have not been uploaded yet are preserved even when the incoming
	// snapshot omits them, so a partial field update can never discard
	// queued evidence.
	Upsert(ctx context.Context, j *models.Job) error
	// Replace writes the job as-is, dropping any photo refs not present in
	// the snapshot. Used by the pull-merge engine when the remote copy is
	// authoritative.
	Replace(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	// ListByWorkspace returns records ordered by recency (newest first).
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Job, error)
	Delete(ctx context.Context, id string) error
	SetSyncStatus(ctx context.Context, id string, status models.SyncStatus) error
	// SetPhotoURL substitutes the uploaded remote URL into the job's photo list.
	SetPhotoURL(ctx context.Context, jobID, photoID, url string) error
}
