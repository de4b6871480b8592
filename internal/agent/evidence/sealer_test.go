package evidence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/actions"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/jobs"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/media"
	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/logging"

	_ "modernc.org/sqlite"
)

func setupSealer(t *testing.T) (*Sealer, jobs.Repository, media.Repository, actions.Repository, *clockx.Manual) {
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
CREATE TABLE media (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL,
  data BLOB NOT NULL,
  created_at_ms INTEGER NOT NULL
);
`)
	require.NoError(t, err)

	jobRepo := jobs.NewSQLiteRepository(db)
	mediaRepo := media.NewSQLiteRepository(db)
	actionRepo := actions.NewSQLiteRepository(db)
	clock := clockx.NewManual(time.UnixMilli(0).UTC())
	s := NewSealer(jobRepo, mediaRepo, actionRepo, clock, logging.NewDiscard())
	return s, jobRepo, mediaRepo, actionRepo, clock
}

func TestHash(t *testing.T) {
	job := &models.Job{
		ID:          "j1",
		WorkspaceID: "ws",
		Title:       "Boiler inspection",
		Photos: []models.PhotoRef{
			{ID: "p1", URL: "https://blobs/p1"},
			{ID: "p2", URL: "https://blobs/p2"},
		},
	}

	h1 := Hash(job, []byte("a"), []byte("b"))
	h2 := Hash(job, []byte("a"), []byte("b"))
	assert.Equal(t, h1, h2, "deterministic")
	assert.Len(t, h1, 64)

	reordered := *job
	reordered.Photos = []models.PhotoRef{job.Photos[1], job.Photos[0]}
	assert.Equal(t, h1, Hash(&reordered, []byte("a"), []byte("b")), "photo order must not matter")

	edited := *job
	edited.Title = "Boiler replacement"
	assert.NotEqual(t, h1, Hash(&edited, []byte("a"), []byte("b")))

	assert.NotEqual(t, h1, Hash(job, []byte("a"), []byte("X")), "photo bytes are covered")
}

func TestSeal_AllPhotosUploaded(t *testing.T) {
	s, jobRepo, _, actionRepo, clock := setupSealer(t)
	ctx := context.Background()

	job := &models.Job{
		ID:          "j1",
		WorkspaceID: "ws",
		Title:       "Boiler inspection",
		Photos:      []models.PhotoRef{{ID: "p1", URL: "https://blobs/p1"}},
		SyncStatus:  models.SyncStatusSynced,
		UpdatedAt:   clock.Now(),
	}
	require.NoError(t, jobRepo.Upsert(ctx, job))

	require.NoError(t, s.Seal(ctx, "j1"))

	sealed, err := jobRepo.GetByID(ctx, "j1")
	require.NoError(t, err)
	require.True(t, sealed.Sealed())
	assert.NotEmpty(t, sealed.EvidenceHash)
	assert.Equal(t, models.SyncStatusPending, sealed.SyncStatus)

	queued, err := actionRepo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, models.ActionUpdateJob, queued[0].Kind)
	p := queued[0].Payload.(models.JobPayload)
	assert.True(t, p.Job.Sealed())
}

func TestSeal_AlreadySealedIsNoop(t *testing.T) {
	s, jobRepo, _, actionRepo, clock := setupSealer(t)
	ctx := context.Background()

	sealedAt := clock.Now()
	job := &models.Job{
		ID:          "j1",
		WorkspaceID: "ws",
		SyncStatus:  models.SyncStatusSynced,
		UpdatedAt:   clock.Now(),
		SealedAt:    &sealedAt,
	}
	require.NoError(t, jobRepo.Upsert(ctx, job))

	require.NoError(t, s.Seal(ctx, "j1"))

	n, err := actionRepo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeal_TimesOutOnUnsyncedPhotos(t *testing.T) {
	s, jobRepo, mediaRepo, _, clock := setupSealer(t)
	ctx := context.Background()

	job := &models.Job{
		ID:          "j1",
		WorkspaceID: "ws",
		Photos:      []models.PhotoRef{{ID: "p1"}},
		SyncStatus:  models.SyncStatusPending,
		UpdatedAt:   clock.Now(),
	}
	require.NoError(t, jobRepo.Upsert(ctx, job))
	require.NoError(t, mediaRepo.Put(ctx, &models.MediaBlob{ID: "p1", JobID: "j1", Data: []byte{1}, CreatedAt: clock.Now()}))

	err := s.Seal(ctx, "j1")
	require.ErrorIs(t, err, ErrPhotoSyncTimeout)
	assert.GreaterOrEqual(t, clock.Now().Sub(time.UnixMilli(0).UTC()), waitTimeout)

	got, err := jobRepo.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, got.Sealed())
}

func TestPhotoSynced_WithoutRequestIsNoop(t *testing.T) {
	s, jobRepo, _, actionRepo, clock := setupSealer(t)
	ctx := context.Background()

	job := &models.Job{
		ID:          "j1",
		WorkspaceID: "ws",
		Photos:      []models.PhotoRef{{ID: "p1", URL: "https://blobs/p1"}},
		SyncStatus:  models.SyncStatusSynced,
		UpdatedAt:   clock.Now(),
	}
	require.NoError(t, jobRepo.Upsert(ctx, job))

	s.PhotoSynced(ctx, "j1")

	n, err := actionRepo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "no seal was requested")
}

func TestSeal_MissingJob(t *testing.T) {
	s, _, _, _, _ := setupSealer(t)
	err := s.Seal(context.Background(), "nope")
	require.Error(t, err)
}
