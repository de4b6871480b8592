package evidence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/actions"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/jobs"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/media"
	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/logging"
)

// ErrPhotoSyncTimeout means sealing gave up waiting for photo uploads. The
// caller may retry once connectivity improves.
var ErrPhotoSyncTimeout = errors.New("timed out waiting for photo sync")

const (
	// waitTimeout bounds how long Seal blocks on outstanding uploads.
	waitTimeout  = 2 * time.Minute
	pollInterval = 2 * time.Second
)

type Sealer struct {
	jobs    jobs.Repository
	media   media.Repository
	actions actions.Repository
	clock   clockx.Clock
	logger  logging.Logger

	mu        sync.Mutex
	requested map[string]struct{}
}

func NewSealer(j jobs.Repository, m media.Repository, a actions.Repository, clock clockx.Clock, logger logging.Logger) *Sealer {
	return &Sealer{
		jobs:      j,
		media:     m,
		actions:   a,
		clock:     clock,
		logger:    logger.With("component", "sealer"),
		requested: make(map[string]struct{}),
	}
}

// Seal finalizes the job's evidence bundle. It waits until every attached
// photo has a remote URL, then stamps SealedAt and the evidence hash and
// queues the update for sync. Sealing an already-sealed job is a no-op.
func (s *Sealer) Seal(ctx context.Context, jobID string) error {
	s.mu.Lock()
	s.requested[jobID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.requested, jobID)
		s.mu.Unlock()
	}()

	deadline := s.clock.Now().Add(waitTimeout)
	for {
		job, err := s.jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Sealed() {
			return nil
		}
		if allUploaded(job) {
			return s.finalize(ctx, job)
		}
		if !s.clock.Now().Before(deadline) {
			return fmt.Errorf("job %s: %w", jobID, ErrPhotoSyncTimeout)
		}
		if err := s.clock.Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// PhotoSynced lets the sync engine nudge a seal along: when a seal has been
// requested for the job and its last photo just got a URL, finalize without
// waiting for the next poll.
func (s *Sealer) PhotoSynced(ctx context.Context, jobID string) {
	s.mu.Lock()
	_, pending := s.requested[jobID]
	s.mu.Unlock()
	if !pending {
		return
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil || job.Sealed() || !allUploaded(job) {
		return
	}
	if err := s.finalize(ctx, job); err != nil {
		s.logger.Error(ctx, "seal after photo sync failed", "job_id", jobID, "error", err)
	}
}

func allUploaded(job *models.Job) bool {
	for _, p := range job.Photos {
		if !p.Uploaded() {
			return false
		}
	}
	return true
}

func (s *Sealer) finalize(ctx context.Context, job *models.Job) error {
	var blobs [][]byte
	for _, p := range job.Photos {
		b, err := s.media.Get(ctx, p.ID)
		if err != nil {
			// uploaded blobs may already be cleaned up locally
			continue
		}
		blobs = append(blobs, b.Data)
	}

	now := s.clock.Now().UTC()
	job.EvidenceHash = Hash(job, blobs...)
	job.SealedAt = &now
	job.UpdatedAt = now
	job.SyncStatus = models.SyncStatusPending

	if err := s.jobs.Upsert(ctx, job); err != nil {
		return fmt.Errorf("failed to store sealed job: %w", err)
	}

	action := &models.Action{
		ID:          uuid.NewString(),
		Kind:        models.ActionUpdateJob,
		WorkspaceID: job.WorkspaceID,
		Payload:     models.JobPayload{Job: *job},
		CreatedAt:   now,
	}
	if err := s.actions.Enqueue(ctx, action); err != nil {
		return fmt.Errorf("failed to queue seal update: %w", err)
	}

	s.logger.Info(ctx, "job sealed", "job_id", job.ID, "hash", job.EvidenceHash)
	return nil
}
