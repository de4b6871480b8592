// Package orphans keeps audit records for photo evidence whose binary was
// lost or whose upload failed permanently. The record preserves the capture
// metadata even when the pixels are gone.
package orphans

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/agent/models"
)

type Repository interface {
	// Add is idempotent per photo id; repeated orphaning of the same photo
	// updates the reason instead of inserting a duplicate.
	Add(ctx context.Context, o *models.OrphanRecord) error
	List(ctx context.Context) ([]*models.OrphanRecord, error)
	ListByJob(ctx context.Context, jobID string) ([]*models.OrphanRecord, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, photoID string) error
	IncrementRecoveryAttempts(ctx context.Context, photoID string) error
}
