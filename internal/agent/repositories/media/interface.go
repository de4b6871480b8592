// Package media persists captured photo binaries until they are uploaded or
// proven orphaned.
package media

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/agent/models"
)

type Repository interface {
	// Put stores the blob. A full device surfaces as
	// syncerr.ErrQuotaExceeded so callers can give actionable guidance
	// instead of silently dropping evidence.
	Put(ctx context.Context, b *models.MediaBlob) error
	// Get returns syncerr.ErrBlobMissing when the binary is not present.
	Get(ctx context.Context, id string) (*models.MediaBlob, error)
	Delete(ctx context.Context, id string) error
	DeleteByJobID(ctx context.Context, jobID string) error
	ListIDsByJob(ctx context.Context, jobID string) ([]string, error)
}
