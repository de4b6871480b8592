package entities

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/rpc"
)

type Repository interface {
	Upsert(ctx context.Context, row rpc.EntityRow) error
	Delete(ctx context.Context, entity, id, workspaceID string) error
	ListByWorkspace(ctx context.Context, entity, workspaceID string) ([]rpc.EntityRow, error)
}
