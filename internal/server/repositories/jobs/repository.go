package jobs

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/rpc"
)

type Repository interface {
	Upsert(ctx context.Context, row rpc.JobRow) (rpc.JobRow, error)
	GetByID(ctx context.Context, id string) (rpc.JobRow, error)
	PullByWorkspace(ctx context.Context, workspaceID string) ([]rpc.JobRow, error)
	Delete(ctx context.Context, id string) error
}
