// Package app wires the agent together: local store, remote client, sync
// engines and their schedules.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/fieldsync/fieldsync/internal/agent/bus"
	"github.com/fieldsync/fieldsync/internal/agent/config"
	"github.com/fieldsync/fieldsync/internal/agent/evidence"
	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/agent/pull"
	"github.com/fieldsync/fieldsync/internal/agent/remote"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/actions"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/conflicts"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/drafts"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/jobs"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/media"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/orphans"
	"github.com/fieldsync/fieldsync/internal/agent/retry"
	"github.com/fieldsync/fieldsync/internal/agent/store"
	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/filex"
	"github.com/fieldsync/fieldsync/internal/logging"
)

// logNotifier surfaces sync outcomes through the structured log. A UI build
// would swap in a desktop or push notifier here.
type logNotifier struct {
	logger logging.Logger
}

func (n *logNotifier) Notify(ctx context.Context, title, message string) {
	n.logger.Info(ctx, "notification", "title", title, "message", message)
}

type App struct {
	cfg    *config.Config
	logger logging.Logger
	clock  clockx.Clock

	store   *store.Store
	client  remote.Client
	watcher *remote.Watcher
	bus     *bus.Memory
	tracker *bus.Tracker

	Jobs      jobs.Repository
	Actions   actions.Repository
	Media     media.Repository
	Orphans   orphans.Repository
	Drafts    drafts.Repository
	Conflicts conflicts.Repository

	Retry  *retry.Engine
	Pull   *pull.Engine
	Sealer *evidence.Sealer

	cron *cron.Cron

	// Recreated reports that the local store was corrupted on open and had
	// to be purged and rebuilt. Unsynced local data was lost.
	Recreated bool
}

func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}

	dir, err := filex.EnsureSubdDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	st, recreated, err := store.Open(ctx, filepath.Join(dir, "fieldsync.db"))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if recreated {
		logger.Warn(ctx, "local store was corrupted and has been recreated, unsynced data was lost")
	}

	client, err := remote.NewGRPCClient(cfg.ServerEndpointAddr)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	clock := clockx.NewReal()
	db := st.DB()

	a := &App{
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
		store:     st,
		client:    client,
		bus:       bus.NewMemory(),
		Jobs:      jobs.NewSQLiteRepository(db),
		Actions:   actions.NewSQLiteRepository(db),
		Media:     media.NewSQLiteRepository(db),
		Orphans:   orphans.NewSQLiteRepository(db),
		Drafts:    drafts.NewSQLiteRepository(db, clock),
		Conflicts: conflicts.NewSQLiteRepository(db),
		Recreated: recreated,
	}
	a.tracker = bus.NewTracker(cfg.DeviceID, clock)

	notifier := &logNotifier{logger: logger}
	a.Sealer = evidence.NewSealer(a.Jobs, a.Media, a.Actions, clock, logger)
	a.Retry = retry.NewEngine(retry.Config{
		Actions:  a.Actions,
		Jobs:     a.Jobs,
		Media:    a.Media,
		Orphans:  a.Orphans,
		Remote:   client,
		Bus:      a.bus,
		Tracker:  a.tracker,
		Clock:    clock,
		Logger:   logger,
		Notifier: notifier,
		Sealer:   a.Sealer,
		SenderID: cfg.DeviceID,
	})
	a.Pull = pull.NewEngine(pull.Config{
		Jobs:      a.Jobs,
		Actions:   a.Actions,
		Media:     a.Media,
		Orphans:   a.Orphans,
		Conflicts: a.Conflicts,
		Remote:    client,
		Clock:     clock,
		Logger:    logger,
		Notifier:  notifier,
	})

	a.watcher = remote.NewWatcher(client, clock, logger, cfg.OnlineCheckInterval)
	a.watcher.OnReconnect(a.onReconnect)

	return a, nil
}

// Login authenticates this device against the workspace.
func (a *App) Login(ctx context.Context, secret string) error {
	return a.client.Login(ctx, a.cfg.DeviceID, a.cfg.WorkspaceID, secret)
}

// Online reports current connectivity as seen by the watcher.
func (a *App) Online() bool {
	return a.watcher.Online()
}

// onReconnect drains first so queued work reaches the server before the
// reconcile cycle pulls it back, then sweeps the failed queue after a short
// delay, then pulls.
func (a *App) onReconnect(ctx context.Context) {
	if err := a.Retry.Drain(ctx); err != nil {
		a.logger.Warn(ctx, "drain after reconnect failed", "error", err)
	}

	go func() {
		if err := a.clock.Sleep(ctx, a.cfg.FailedSweepDelay); err != nil {
			return
		}
		if err := a.Retry.RetryAllFailed(ctx); err != nil {
			a.logger.Warn(ctx, "failed-queue sweep failed", "error", err)
		}
	}()

	if _, err := a.Pull.Pull(ctx, a.cfg.WorkspaceID); err != nil {
		a.logger.Warn(ctx, "pull after reconnect failed", "error", err)
	}
}

// Run starts the background schedules and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.tracker.Run(ctx, a.bus)

	a.cron = cron.New()
	_, err := a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.DrainInterval), func() {
		if !a.watcher.Online() {
			return
		}
		if err := a.Retry.Drain(ctx); err != nil {
			a.logger.Warn(ctx, "scheduled drain failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	_, err = a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.PullInterval), func() {
		if !a.watcher.Online() {
			return
		}
		if _, err := a.Pull.Pull(ctx, a.cfg.WorkspaceID); err != nil {
			a.logger.Warn(ctx, "scheduled pull failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	_, err = a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.DrainInterval), func() {
		st, err := a.Retry.SyncStatus(ctx)
		if err != nil {
			a.logger.Warn(ctx, "queue status refresh failed", "error", err)
			return
		}
		a.logger.Debug(ctx, "queue status", "pending", st.Pending, "failed", st.Failed)
	})
	if err != nil {
		return err
	}
	_, err = a.cron.AddFunc("@hourly", func() {
		n, err := a.Drafts.PruneExpired(ctx)
		if err != nil {
			a.logger.Warn(ctx, "draft prune failed", "error", err)
			return
		}
		if n > 0 {
			a.logger.Info(ctx, "expired drafts pruned", "count", n)
		}
	})
	if err != nil {
		return err
	}
	a.cron.Start()
	defer a.cron.Stop()

	return a.watcher.Run(ctx)
}

// Status returns queue depths for the sync badge.
func (a *App) Status(ctx context.Context) (retry.Status, error) {
	return a.Retry.SyncStatus(ctx)
}

// RecordJob stores a local edit and queues it for sync.
func (a *App) RecordJob(ctx context.Context, job *models.Job, kind models.ActionKind) error {
	job.SyncStatus = models.SyncStatusPending
	if err := a.Jobs.Upsert(ctx, job); err != nil {
		return err
	}
	action := &models.Action{
		ID:          uuid.NewString(),
		Kind:        kind,
		WorkspaceID: job.WorkspaceID,
		Payload:     models.JobPayload{Job: *job},
		CreatedAt:   a.clock.Now().UTC(),
	}
	return a.Actions.Enqueue(ctx, action)
}

// RecordPhoto stores a captured photo locally and queues its upload.
func (a *App) RecordPhoto(ctx context.Context, p models.PhotoPayload, data []byte) error {
	blob := &models.MediaBlob{ID: p.PhotoID, JobID: p.JobID, Data: data, CreatedAt: a.clock.Now().UTC()}
	if err := a.Media.Put(ctx, blob); err != nil {
		return err
	}
	job, err := a.Jobs.GetByID(ctx, p.JobID)
	if err != nil {
		return err
	}
	job.Photos = append(job.Photos, models.PhotoRef{ID: p.PhotoID})
	job.SyncStatus = models.SyncStatusPending
	if err := a.Jobs.Upsert(ctx, job); err != nil {
		return err
	}
	action := &models.Action{
		ID:          uuid.NewString(),
		Kind:        models.ActionUploadPhoto,
		WorkspaceID: a.cfg.WorkspaceID,
		Payload:     p,
		CreatedAt:   a.clock.Now().UTC(),
	}
	return a.Actions.Enqueue(ctx, action)
}

// Close releases the store and the remote connection.
func (a *App) Close() error {
	if err := a.client.Close(); err != nil {
		return err
	}
	return a.store.Close()
}
