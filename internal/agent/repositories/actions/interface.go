// Package actions persists the pending-action queue and the durable
// failed-item log it escalates into.
package actions

import (
	"context"
	"time"

	"github.com/fieldsync/fieldsync/internal/agent/models"
)

type Repository interface {
	Enqueue(ctx context.Context, a *models.Action) error
	// ListPending returns queued actions in enqueue order.
	ListPending(ctx context.Context) ([]*models.Action, error)
	Delete(ctx context.Context, id string) error
	// IncrementRetry bumps the retry counter after a transient failure.
	IncrementRetry(ctx context.Context, id string) error
	// Escalate atomically moves a pending action into the failed log. The
	// read-modify-write runs in one transaction so two concurrent
	// escalations cannot clobber each other or duplicate the item.
	Escalate(ctx context.Context, id string, failedAt time.Time, reason string) (*models.FailedItem, error)
	ListFailed(ctx context.Context) ([]*models.FailedItem, error)
	GetFailed(ctx context.Context, id string) (*models.FailedItem, error)
	// Requeue atomically moves a failed item back onto the pending queue
	// with a fresh retry budget.
	Requeue(ctx context.Context, id string) (*models.Action, error)
	DeleteFailed(ctx context.Context, id string) error
	ClearFailed(ctx context.Context) error
	CountPending(ctx context.Context) (int, error)
	CountFailed(ctx context.Context) (int, error)
	// DeleteByJobID removes queued actions referencing the given job.
	// Used when an authoritative remote copy supersedes local edits and
	// makes the queued mutations moot.
	DeleteByJobID(ctx context.Context, jobID string) error
}
