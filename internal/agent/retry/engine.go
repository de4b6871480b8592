// Package retry drains the pending-action queue against the remote store,
// retrying transient failures with backoff and escalating permanent ones to
// a durable failed queue the user can re-drive.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fieldsync/fieldsync/internal/agent/bus"
	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/agent/remote"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/actions"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/jobs"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/media"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/orphans"
	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

var (
	// ErrDrainInProgress means this engine is already pushing the queue.
	ErrDrainInProgress = errors.New("drain already in progress")
	// ErrPeerDraining means another engine announced an active drain, so
	// this one defers rather than double-pushing the same actions.
	ErrPeerDraining = errors.New("peer drain in progress")
)

// Notifier surfaces sync outcomes to the user.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// SealChecker is pinged when a job's sync state advances, so a waiting seal
// can complete without polling.
type SealChecker interface {
	PhotoSynced(ctx context.Context, jobID string)
}

// Status is the queue depth snapshot shown in the sync badge.
type Status struct {
	Pending int
	Failed  int
}

// Progress reports a failed-queue sweep.
type Progress struct {
	Total     int
	Recovered int
	IsRunning bool
}

type Engine struct {
	actions  actions.Repository
	jobs     jobs.Repository
	media    media.Repository
	orphans  orphans.Repository
	remote   remote.Client
	bus      bus.Bus
	tracker  *bus.Tracker
	clock    clockx.Clock
	logger   logging.Logger
	notifier Notifier
	sealer   SealChecker
	senderID string

	mu       sync.Mutex
	draining bool
	progress Progress
}

type Config struct {
	Actions  actions.Repository
	Jobs     jobs.Repository
	Media    media.Repository
	Orphans  orphans.Repository
	Remote   remote.Client
	Bus      bus.Bus
	Tracker  *bus.Tracker
	Clock    clockx.Clock
	Logger   logging.Logger
	Notifier Notifier
	Sealer   SealChecker
	SenderID string
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		actions:  cfg.Actions,
		jobs:     cfg.Jobs,
		media:    cfg.Media,
		orphans:  cfg.Orphans,
		remote:   cfg.Remote,
		bus:      cfg.Bus,
		tracker:  cfg.Tracker,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With("component", "retry"),
		notifier: cfg.Notifier,
		sealer:   cfg.Sealer,
		senderID: cfg.SenderID,
	}
}

// Drain pushes every queued action to the remote store in enqueue order.
// Transient failures back off and retry in place up to MaxRetries;
// permanent failures escalate immediately. Local storage failures abort the
// pass so nothing is dropped against a broken store.
func (e *Engine) Drain(ctx context.Context) error {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return ErrDrainInProgress
	}
	if e.tracker != nil && e.tracker.PeerDraining() {
		e.mu.Unlock()
		return ErrPeerDraining
	}
	e.draining = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	e.bus.Announce(bus.Event{Type: bus.EventDrainStarted, SenderID: e.senderID, At: e.clock.Now()})
	defer e.bus.Announce(bus.Event{Type: bus.EventDrainFinished, SenderID: e.senderID, At: e.clock.Now()})

	queued, err := e.actions.ListPending(ctx)
	if err != nil {
		return err
	}
	e.logger.Info(ctx, "drain started", "pending", len(queued))

	for _, a := range queued {
		if err := e.drainOne(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) drainOne(ctx context.Context, a *models.Action) error {
	for {
		err := e.process(ctx, a)
		if err == nil {
			return e.actions.Delete(ctx, a.ID)
		}

		if errors.Is(err, syncerr.ErrBlobMissing) {
			// nothing left to upload; keep the audit trail and move on
			if p, ok := a.Payload.(models.PhotoPayload); ok {
				e.orphanPhoto(ctx, p, "media blob missing")
			}
			e.logger.Warn(ctx, "action dropped, blob missing", "action_id", a.ID)
			return e.actions.Delete(ctx, a.ID)
		}

		switch syncerr.Classify(err) {
		case syncerr.Permanent:
			e.logger.Warn(ctx, "permanent failure", "action_id", a.ID, "error", err)
			return e.escalate(ctx, a, err.Error(), true)
		case syncerr.Storage:
			return err
		}

		a.RetryCount++
		if ierr := e.actions.IncrementRetry(ctx, a.ID); ierr != nil {
			return ierr
		}
		if a.RetryCount >= MaxRetries {
			e.logger.Warn(ctx, "retry budget exhausted", "action_id", a.ID)
			// no orphan record: the blob is intact and a manual retry can
			// still recover it
			return e.escalate(ctx, a, "Max retries exceeded", false)
		}
		e.logger.Info(ctx, "transient failure, backing off",
			"action_id", a.ID, "attempt", a.RetryCount, "error", err)
		if serr := e.clock.Sleep(ctx, backoffDelay(a.RetryCount-1)); serr != nil {
			return serr
		}
	}
}

func (e *Engine) process(ctx context.Context, a *models.Action) error {
	switch p := a.Payload.(type) {
	case models.JobPayload:
		return e.processJob(ctx, p)
	case models.PhotoPayload:
		return e.processPhoto(ctx, p)
	case models.EntityPayload:
		return e.processEntity(ctx, a.WorkspaceID, p)
	default:
		return fmt.Errorf("unknown action type %q: %w", a.Kind, syncerr.ErrValidation)
	}
}

func (e *Engine) processJob(ctx context.Context, p models.JobPayload) error {
	authoritative, err := e.remote.UpsertJob(ctx, &p.Job)
	if err != nil {
		return err
	}
	if err := e.jobs.Upsert(ctx, authoritative); err != nil {
		return err
	}
	for _, ph := range authoritative.Photos {
		if !ph.Uploaded() {
			continue
		}
		if derr := e.media.Delete(ctx, ph.ID); derr != nil {
			e.logger.Warn(ctx, "media cleanup failed", "photo_id", ph.ID, "error", derr)
		}
	}
	if e.sealer != nil {
		e.sealer.PhotoSynced(ctx, p.Job.ID)
	}
	return nil
}

func (e *Engine) processPhoto(ctx context.Context, p models.PhotoPayload) error {
	blob, err := e.media.Get(ctx, p.PhotoID)
	if err != nil {
		return err
	}
	url, err := e.remote.UploadPhoto(ctx, p.JobID, p.PhotoID, blob.Data)
	if err != nil {
		return err
	}
	if err := e.jobs.SetPhotoURL(ctx, p.JobID, p.PhotoID, url); err != nil {
		return err
	}
	if e.sealer != nil {
		e.sealer.PhotoSynced(ctx, p.JobID)
	}
	return nil
}

func (e *Engine) processEntity(ctx context.Context, workspaceID string, p models.EntityPayload) error {
	row := rpc.EntityRow{
		Entity:      p.Entity,
		ID:          p.ID,
		WorkspaceID: workspaceID,
		Payload:     p.Data,
		UpdatedAtMs: p.UpdatedAt.UnixMilli(),
	}
	return e.remote.UpsertEntity(ctx, row)
}

func (e *Engine) escalate(ctx context.Context, a *models.Action, reason string, orphan bool) error {
	if p, ok := a.Payload.(models.PhotoPayload); ok && orphan {
		e.orphanPhoto(ctx, p, reason)
	}
	if _, err := e.actions.Escalate(ctx, a.ID, e.clock.Now(), reason); err != nil {
		return err
	}
	if err := e.markJobFailed(ctx, a); err != nil {
		e.logger.Warn(ctx, "failed to mark job failed", "action_id", a.ID, "error", err)
	}
	if e.notifier != nil {
		e.notifier.Notify(ctx, "Sync failed",
			fmt.Sprintf("%s could not be synced: %s", describe(a), reason))
	}
	return nil
}

func (e *Engine) markJobFailed(ctx context.Context, a *models.Action) error {
	jobID := ""
	switch p := a.Payload.(type) {
	case models.JobPayload:
		jobID = p.Job.ID
	case models.PhotoPayload:
		jobID = p.JobID
	}
	if jobID == "" {
		return nil
	}
	err := e.jobs.SetSyncStatus(ctx, jobID, models.SyncStatusFailed)
	if errors.Is(err, syncerr.ErrNotFound) {
		return nil
	}
	return err
}

func (e *Engine) orphanPhoto(ctx context.Context, p models.PhotoPayload, reason string) {
	rec := &models.OrphanRecord{
		PhotoID:     p.PhotoID,
		JobID:       p.JobID,
		JobTitle:    p.JobTitle,
		CaptureType: p.CapturePhase,
		CapturedAt:  p.CapturedAt,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Reason:      reason,
		OrphanedAt:  e.clock.Now().UTC(),
	}
	if err := e.orphans.Add(ctx, rec); err != nil {
		e.logger.Error(ctx, "failed to record orphan", "photo_id", p.PhotoID, "error", err)
	}
}

func describe(a *models.Action) string {
	switch a.Kind {
	case models.ActionCreateJob:
		return "Job creation"
	case models.ActionUpdateJob:
		return "Job update"
	case models.ActionUploadPhoto:
		return "Photo upload"
	case models.ActionUpsertClient:
		return "Client record"
	case models.ActionUpsertTechnician:
		return "Technician record"
	case models.ActionUpsertSafetyCheck:
		return "Safety check"
	default:
		return "Change"
	}
}

// RetryFailedItem moves one failed item back onto the queue with a fresh
// retry budget and drains.
func (e *Engine) RetryFailedItem(ctx context.Context, id string) error {
	if _, err := e.actions.Requeue(ctx, id); err != nil {
		return err
	}
	return e.Drain(ctx)
}

// RetryAllFailed sweeps the whole failed queue back through the drain.
func (e *Engine) RetryAllFailed(ctx context.Context) error {
	items, err := e.actions.ListFailed(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	e.mu.Lock()
	e.progress = Progress{Total: len(items), IsRunning: true}
	e.mu.Unlock()

	for _, item := range items {
		if _, err := e.actions.Requeue(ctx, item.ID); err != nil {
			e.logger.Error(ctx, "requeue failed", "action_id", item.ID, "error", err)
		}
	}

	drainErr := e.Drain(ctx)

	remaining, countErr := e.actions.CountFailed(ctx)
	e.mu.Lock()
	e.progress.IsRunning = false
	if countErr == nil {
		e.progress.Recovered = e.progress.Total - remaining
	}
	e.mu.Unlock()

	return drainErr
}

// AutoRetryProgress reports the most recent failed-queue sweep.
func (e *Engine) AutoRetryProgress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// SyncStatus returns the current queue depths.
func (e *Engine) SyncStatus(ctx context.Context) (Status, error) {
	pending, err := e.actions.CountPending(ctx)
	if err != nil {
		return Status{}, err
	}
	failed, err := e.actions.CountFailed(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Pending: pending, Failed: failed}, nil
}
