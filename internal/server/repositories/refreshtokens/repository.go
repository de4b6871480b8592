package refreshtokens

import (
	"context"
	"time"

	"github.com/fieldsync/fieldsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token, deviceID, workspaceID string, validity time.Duration) error
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	Delete(ctx context.Context, token string) error
}
