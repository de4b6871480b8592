// Package drafts autosaves unsubmitted form state so a crash or app restart
// does not lose in-progress work.
package drafts

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/agent/models"
)

type Repository interface {
	Put(ctx context.Context, d *models.FormDraft) error
	// Get returns syncerr.ErrNotFound when the draft is absent or expired.
	// An expired draft is deleted on the way out.
	Get(ctx context.Context, id string) (*models.FormDraft, error)
	Delete(ctx context.Context, id string) error
	// PruneExpired removes all drafts past their lifetime and reports how
	// many were dropped.
	PruneExpired(ctx context.Context) (int, error)
}
