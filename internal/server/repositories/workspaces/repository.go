package workspaces

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, ws *models.Workspace) error
	Get(ctx context.Context, id string) (*models.Workspace, error)
}
