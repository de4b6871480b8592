// Package remote is the agent's view of the workspace sync service.
package remote

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/rpc"
)

// Client talks to the remote workspace store. Implementations map transport
// failures onto the syncerr catalog so callers can classify them without
// knowing the wire protocol.
type Client interface {
	Login(ctx context.Context, deviceID, workspaceID, secret string) error
	Ping(ctx context.Context) error
	UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error)
	UpsertEntity(ctx context.Context, row rpc.EntityRow) error
	DeleteEntity(ctx context.Context, entity, id, workspaceID string) error
	PullJobs(ctx context.Context, workspaceID string) ([]*models.Job, error)
	// UploadPhoto pushes the binary to the blob store via a presigned URL
	// and returns the public URL to substitute into the owning job.
	UploadPhoto(ctx context.Context, jobID, photoID string, data []byte) (string, error)
	// PhotoDownloadURL returns a short-lived download URL for a stored
	// photo object, for viewing photos that are no longer cached locally.
	PhotoDownloadURL(ctx context.Context, key string) (string, error)
	Close() error
}
