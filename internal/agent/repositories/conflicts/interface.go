// Package conflicts records how each pull-cycle disagreement was resolved.
// The log is a capped ring so telemetry can never grow without bound on a
// device that stays offline for months.
package conflicts

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/agent/models"
)

type Repository interface {
	// Append records an event, evicting the oldest entries past the cap.
	Append(ctx context.Context, e *models.ConflictEvent) error
	// List returns events oldest first.
	List(ctx context.Context) ([]*models.ConflictEvent, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
