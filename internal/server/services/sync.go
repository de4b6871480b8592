package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/server/repositories/repomanager"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

// SyncService applies job and entity mutations coming from devices and
// serves workspace pulls. Every call is scoped to the workspace the
// caller authenticated for.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager) *SyncService {
	return &SyncService{db: db, repomanager: m}
}

// UpsertJob stores a job row and returns the authoritative stored form.
// Sealed jobs reject further changes with syncerr.ErrSealed.
func (s *SyncService) UpsertJob(ctx context.Context, workspaceID string, row rpc.JobRow) (rpc.JobRow, error) {
	if row.ID == "" || row.WorkspaceID == "" {
		return rpc.JobRow{}, fmt.Errorf("job id and workspace required: %w", syncerr.ErrValidation)
	}
	if row.WorkspaceID != workspaceID {
		return rpc.JobRow{}, syncerr.ErrUnauthorized
	}

	repo := s.repomanager.Jobs(s.db)
	return repo.Upsert(ctx, row)
}

func (s *SyncService) UpsertEntity(ctx context.Context, workspaceID string, row rpc.EntityRow) error {
	if row.Entity == "" || row.ID == "" {
		return fmt.Errorf("entity kind and id required: %w", syncerr.ErrValidation)
	}
	if row.WorkspaceID != workspaceID {
		return syncerr.ErrUnauthorized
	}

	repo := s.repomanager.Entities(s.db)
	return repo.Upsert(ctx, row)
}

func (s *SyncService) DeleteEntity(ctx context.Context, workspaceID, entity, id string) error {
	if entity == "" || id == "" {
		return fmt.Errorf("entity kind and id required: %w", syncerr.ErrValidation)
	}

	repo := s.repomanager.Entities(s.db)
	return repo.Delete(ctx, entity, id, workspaceID)
}

// PullJobs returns every job in the caller's workspace.
func (s *SyncService) PullJobs(ctx context.Context, workspaceID string) ([]rpc.JobRow, error) {
	repo := s.repomanager.Jobs(s.db)
	return repo.PullByWorkspace(ctx, workspaceID)
}
