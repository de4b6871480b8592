package retry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/agent/bus"
	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/actions"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/jobs"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/media"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/orphans"
	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/syncerr"

	_ "modernc.org/sqlite"
)

type fakeRemote struct {
	mu          sync.Mutex
	calls       []string
	upsertJob   func(job *models.Job) (*models.Job, error)
	uploadPhoto func(jobID, photoID string, data []byte) (string, error)
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Login(context.Context, string, string, string) error { return nil }
func (f *fakeRemote) Ping(context.Context) error                          { return nil }
func (f *fakeRemote) Close() error                                        { return nil }

func (f *fakeRemote) UpsertJob(_ context.Context, job *models.Job) (*models.Job, error) {
	f.record("upsert_job:" + job.ID)
	if f.upsertJob != nil {
		return f.upsertJob(job)
	}
	synced := *job
	synced.SyncStatus = models.SyncStatusSynced
	return &synced, nil
}

func (f *fakeRemote) UploadPhoto(_ context.Context, jobID, photoID string, data []byte) (string, error) {
	f.record("upload:" + photoID)
	if f.uploadPhoto != nil {
		return f.uploadPhoto(jobID, photoID, data)
	}
	return "https://blobs/" + photoID, nil
}

func (f *fakeRemote) UpsertEntity(_ context.Context, row rpc.EntityRow) error {
	f.record("upsert_entity:" + row.ID)
	return nil
}

func (f *fakeRemote) DeleteEntity(context.Context, string, string, string) error { return nil }

func (f *fakeRemote) PullJobs(context.Context, string) ([]*models.Job, error) { return nil, nil }

func (f *fakeRemote) PhotoDownloadURL(context.Context, string) (string, error) { return "", nil }

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, title+": "+message)
}

type fixture struct {
	engine   *Engine
	actions  actions.Repository
	jobs     jobs.Repository
	media    media.Repository
	orphans  orphans.Repository
	remote   *fakeRemote
	notifier *fakeNotifier
	bus      *bus.Memory
	tracker  *bus.Tracker
	clock    *clockx.Manual
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE jobs (
  id TEXT PRIMARY KEY,
  workspace_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  technician_id TEXT NOT NULL DEFAULT '',
  photos TEXT NOT NULL DEFAULT '[]',
  signature_id TEXT NOT NULL DEFAULT '',
  safety_checklist TEXT,
  sync_status TEXT NOT NULL DEFAULT 'pending',
  updated_at_ms INTEGER NOT NULL,
  sealed_at_ms INTEGER,
  evidence_hash TEXT NOT NULL DEFAULT ''
);
CREATE TABLE actions (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  workspace_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at_ms INTEGER NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE failed_actions (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  workspace_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at_ms INTEGER NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0,
  failed_at_ms INTEGER NOT NULL,
  reason TEXT NOT NULL DEFAULT ''
);
CREATE TABLE media (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL,
  data BLOB NOT NULL,
  created_at_ms INTEGER NOT NULL
);
CREATE TABLE orphans (
  photo_id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL,
  job_title TEXT NOT NULL DEFAULT '',
  capture_type TEXT NOT NULL DEFAULT '',
  captured_at_ms INTEGER NOT NULL,
  latitude REAL NOT NULL DEFAULT 0,
  longitude REAL NOT NULL DEFAULT 0,
  reason TEXT NOT NULL DEFAULT '',
  orphaned_at_ms INTEGER NOT NULL,
  recovery_attempts INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	f := &fixture{
		actions:  actions.NewSQLiteRepository(db),
		jobs:     jobs.NewSQLiteRepository(db),
		media:    media.NewSQLiteRepository(db),
		orphans:  orphans.NewSQLiteRepository(db),
		remote:   &fakeRemote{},
		notifier: &fakeNotifier{},
		bus:      bus.NewMemory(),
		clock:    clockx.NewManual(time.UnixMilli(0).UTC()),
	}
	f.tracker = bus.NewTracker("engine-1", f.clock)
	f.engine = NewEngine(Config{
		Actions:  f.actions,
		Jobs:     f.jobs,
		Media:    f.media,
		Orphans:  f.orphans,
		Remote:   f.remote,
		Bus:      f.bus,
		Tracker:  f.tracker,
		Clock:    f.clock,
		Logger:   logging.NewDiscard(),
		Notifier: f.notifier,
		SenderID: "engine-1",
	})
	return f
}

func (f *fixture) enqueuePhoto(t *testing.T, actionID, jobID, photoID string, withBlob bool) {
	t.Helper()
	ctx := context.Background()
	if withBlob {
		blob := &models.MediaBlob{ID: photoID, JobID: jobID, Data: []byte("jpeg"), CreatedAt: f.clock.Now()}
		require.NoError(t, f.media.Put(ctx, blob))
	}
	a := &models.Action{
		ID:          actionID,
		Kind:        models.ActionUploadPhoto,
		WorkspaceID: "ws",
		Payload: models.PhotoPayload{
			PhotoID:      photoID,
			JobID:        jobID,
			JobTitle:     "Boiler inspection",
			CapturePhase: "before",
			CapturedAt:   f.clock.Now(),
			Latitude:     51.5,
			Longitude:    -0.1,
		},
		CreatedAt: f.clock.Now(),
	}
	require.NoError(t, f.actions.Enqueue(ctx, a))
}

func (f *fixture) enqueueJob(t *testing.T, actionID string, job models.Job) {
	t.Helper()
	a := &models.Action{
		ID:          actionID,
		Kind:        models.ActionUpdateJob,
		WorkspaceID: job.WorkspaceID,
		Payload:     models.JobPayload{Job: job},
		CreatedAt:   f.clock.Now(),
	}
	require.NoError(t, f.actions.Enqueue(context.Background(), a))
}

func pendingJob(id string) models.Job {
	return models.Job{
		ID:          id,
		WorkspaceID: "ws",
		Title:       "Boiler inspection",
		SyncStatus:  models.SyncStatusPending,
		UpdatedAt:   time.UnixMilli(1000).UTC(),
	}
}

func TestDrain_SuccessInEnqueueOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	job := pendingJob("j1")
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	f.enqueueJob(t, "a1", job)
	f.enqueuePhoto(t, "a2", "j1", "p1", true)
	f.enqueuePhoto(t, "a3", "j1", "p2", true)

	require.NoError(t, f.engine.Drain(ctx))

	assert.Equal(t, []string{"upsert_job:j1", "upload:p1", "upload:p2"}, f.remote.calls)

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{Pending: 0, Failed: 0}, st)

	got, err := f.jobs.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "https://blobs/p1", got.Photos[0].URL)
	assert.Equal(t, "https://blobs/p2", got.Photos[1].URL)
}

func TestDrain_TransientRetriesWithBackoff(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	failures := 2
	f.remote.uploadPhoto = func(jobID, photoID string, data []byte) (string, error) {
		if failures > 0 {
			failures--
			return "", fmt.Errorf("%w: connection reset", syncerr.ErrUnavailable)
		}
		return "https://blobs/" + photoID, nil
	}

	job := pendingJob("j1")
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	f.enqueuePhoto(t, "a1", "j1", "p1", true)

	require.NoError(t, f.engine.Drain(ctx))

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{}, st)

	// two backoff sleeps happened: at least 75% of 2s+4s
	elapsed := f.clock.Now().Sub(time.UnixMilli(0).UTC())
	assert.GreaterOrEqual(t, elapsed, 4500*time.Millisecond)
}

func TestDrain_RateLimitBacksOffAndRetries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	failures := 1
	f.remote.uploadPhoto = func(jobID, photoID string, data []byte) (string, error) {
		if failures > 0 {
			failures--
			return "", fmt.Errorf("%w: slow down", syncerr.ErrRateLimited)
		}
		return "https://blobs/" + photoID, nil
	}

	job := pendingJob("j1")
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	f.enqueuePhoto(t, "a1", "j1", "p1", true)

	require.NoError(t, f.engine.Drain(ctx), "throttling never aborts the pass")

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{}, st)

	// one backoff sleep happened before the retry succeeded
	elapsed := f.clock.Now().Sub(time.UnixMilli(0).UTC())
	assert.GreaterOrEqual(t, elapsed, 1500*time.Millisecond)
}

func TestDrain_PermanentFailureEscalatesImmediately(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.uploadPhoto = func(jobID, photoID string, data []byte) (string, error) {
		return "", fmt.Errorf("%w: workspace access revoked", syncerr.ErrUnauthorized)
	}

	job := pendingJob("j1")
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	f.enqueuePhoto(t, "a1", "j1", "p1", true)

	require.NoError(t, f.engine.Drain(ctx))

	// no backoff: permanent failures never wait
	assert.Equal(t, time.UnixMilli(0).UTC(), f.clock.Now())

	failed, err := f.actions.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 0, failed[0].RetryCount, "no retries were burned")
	assert.Contains(t, failed[0].Reason, "workspace access revoked")

	recs, err := f.orphans.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p1", recs[0].PhotoID)
	assert.Equal(t, "Boiler inspection", recs[0].JobTitle)

	got, err := f.jobs.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, got.SyncStatus)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "Photo upload")
}

func TestDrain_MaxRetriesExceeded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	attempts := 0
	f.remote.uploadPhoto = func(jobID, photoID string, data []byte) (string, error) {
		attempts++
		return "", fmt.Errorf("%w: timeout", syncerr.ErrUnavailable)
	}

	job := pendingJob("j1")
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	f.enqueuePhoto(t, "a1", "j1", "p1", true)

	require.NoError(t, f.engine.Drain(ctx))

	assert.Equal(t, MaxRetries, attempts)

	failed, err := f.actions.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "Max retries exceeded", failed[0].Reason)
	assert.Equal(t, MaxRetries, failed[0].RetryCount, "failed item records every attempt")

	n, err := f.orphans.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "blob is intact, the photo is not orphaned")

	_, err = f.media.Get(ctx, "p1")
	require.NoError(t, err, "blob survives escalation")
}

func TestDrain_MissingBlobOrphansAndDrops(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.enqueuePhoto(t, "a1", "j1", "p1", false)

	require.NoError(t, f.engine.Drain(ctx))

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{}, st, "the action is dropped, not escalated")

	recs, err := f.orphans.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "media blob missing", recs[0].Reason)
	assert.Equal(t, 51.5, recs[0].Latitude)
}

func TestDrain_PeerDrainingDefers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.enqueuePhoto(t, "a1", "j1", "p1", true)
	f.tracker.Observe(bus.Event{Type: bus.EventDrainStarted, SenderID: "engine-2", At: f.clock.Now()})

	require.ErrorIs(t, f.engine.Drain(ctx), ErrPeerDraining)

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)

	// the peer's claim goes stale eventually
	f.clock.Advance(bus.StaleAfter + time.Second)
	require.NoError(t, f.engine.Drain(ctx))
}

func TestDrain_AnnouncesOnBus(t *testing.T) {
	f := setup(t)
	events, cancel := f.bus.Subscribe()
	defer cancel()

	require.NoError(t, f.engine.Drain(context.Background()))

	started := <-events
	finished := <-events
	assert.Equal(t, bus.EventDrainStarted, started.Type)
	assert.Equal(t, "engine-1", started.SenderID)
	assert.Equal(t, bus.EventDrainFinished, finished.Type)
}

func TestDrain_StorageFailureAborts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.upsertJob = func(*models.Job) (*models.Job, error) {
		return nil, syncerr.ErrQuotaExceeded
	}
	f.enqueueJob(t, "a1", pendingJob("j1"))

	require.ErrorIs(t, f.engine.Drain(ctx), syncerr.ErrQuotaExceeded)

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending, "nothing is dropped against a failing store")
}

func TestRetryAllFailed_RecoversAfterFix(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	broken := true
	f.remote.uploadPhoto = func(jobID, photoID string, data []byte) (string, error) {
		if broken {
			return "", fmt.Errorf("%w: no access", syncerr.ErrUnauthorized)
		}
		return "https://blobs/" + photoID, nil
	}

	job := pendingJob("j1")
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	f.enqueuePhoto(t, "a1", "j1", "p1", true)
	require.NoError(t, f.engine.Drain(ctx))

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.Failed)

	broken = false
	require.NoError(t, f.engine.RetryAllFailed(ctx))

	st, err = f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{}, st)

	p := f.engine.AutoRetryProgress()
	assert.Equal(t, Progress{Total: 1, Recovered: 1, IsRunning: false}, p)
}

func TestRetryFailedItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	broken := true
	f.remote.uploadPhoto = func(jobID, photoID string, data []byte) (string, error) {
		if broken {
			return "", fmt.Errorf("%w: no access", syncerr.ErrUnauthorized)
		}
		return "https://blobs/" + photoID, nil
	}

	job := pendingJob("j1")
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	f.enqueuePhoto(t, "a1", "j1", "p1", true)
	require.NoError(t, f.engine.Drain(ctx))

	broken = false
	require.NoError(t, f.engine.RetryFailedItem(ctx, "a1"))

	st, err := f.engine.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{}, st)
}

func TestDrain_JobSyncCleansUploadedBlobs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	job := pendingJob("j1")
	job.Photos = []models.PhotoRef{{ID: "p1", URL: "https://blobs/p1"}}
	require.NoError(t, f.jobs.Upsert(ctx, &job))
	blob := &models.MediaBlob{ID: "p1", JobID: "j1", Data: []byte("jpeg"), CreatedAt: f.clock.Now()}
	require.NoError(t, f.media.Put(ctx, blob))

	f.enqueueJob(t, "a1", job)
	require.NoError(t, f.engine.Drain(ctx))

	_, err := f.media.Get(ctx, "p1")
	require.ErrorIs(t, err, syncerr.ErrBlobMissing, "uploaded blob cleaned after job sync")
}
