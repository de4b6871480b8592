package actions

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/syncerr"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
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
`)
	require.NoError(t, err)
	return db
}

func photoAction(id, jobID string) *models.Action {
	return &models.Action{
		ID:          id,
		Kind:        models.ActionUploadPhoto,
		WorkspaceID: "ws",
		Payload:     models.PhotoPayload{PhotoID: "p-" + id, JobID: jobID, CapturedAt: time.UnixMilli(10).UTC()},
		CreatedAt:   time.UnixMilli(100).UTC(),
	}
}

func TestEnqueue_ListPending_InOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, photoAction("a1", "j1")))
	require.NoError(t, r.Enqueue(ctx, photoAction("a2", "j1")))
	require.NoError(t, r.Enqueue(ctx, photoAction("a3", "j2")))

	got, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, "a3", got[2].ID)

	// payload survives the round trip with its type intact
	p, ok := got[0].Payload.(models.PhotoPayload)
	require.True(t, ok)
	assert.Equal(t, "j1", p.JobID)
}

func TestIncrementRetry(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, photoAction("a1", "j1")))
	require.NoError(t, r.IncrementRetry(ctx, "a1"))
	require.NoError(t, r.IncrementRetry(ctx, "a1"))

	got, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got[0].RetryCount)

	require.ErrorIs(t, r.IncrementRetry(ctx, "nope"), syncerr.ErrNotFound)
}

func TestEscalate_MovesExactlyOneCopy(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := photoAction("a1", "j1")
	a.RetryCount = 3
	require.NoError(t, r.Enqueue(ctx, a))

	failedAt := time.UnixMilli(5000).UTC()
	item, err := r.Escalate(ctx, "a1", failedAt, "unauthorized")
	require.NoError(t, err)

	assert.Equal(t, "unauthorized", item.Reason)
	assert.Equal(t, failedAt, item.FailedAt)
	assert.Equal(t, 3, item.RetryCount, "escalation must not touch the retry count")

	pending, err := r.CountPending(ctx)
	require.NoError(t, err)
	failed, err := r.CountFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, failed)

	// second escalation of the same id: the action is gone
	_, err = r.Escalate(ctx, "a1", failedAt, "again")
	require.ErrorIs(t, err, syncerr.ErrNotFound)
}

func TestRequeue_RestoresFreshRetryBudget(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := photoAction("a1", "j1")
	a.RetryCount = 7
	require.NoError(t, r.Enqueue(ctx, a))
	_, err := r.Escalate(ctx, "a1", time.UnixMilli(5000), "Max retries exceeded")
	require.NoError(t, err)

	back, err := r.Requeue(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, back.RetryCount)

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a1", pending[0].ID)

	failed, err := r.CountFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
}

func TestClearFailed(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, r.Enqueue(ctx, photoAction(id, "j1")))
		_, err := r.Escalate(ctx, id, time.UnixMilli(1), "x")
		require.NoError(t, err)
	}

	require.NoError(t, r.ClearFailed(ctx))
	n, err := r.CountFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteByJobID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, photoAction("a1", "j1")))
	require.NoError(t, r.Enqueue(ctx, photoAction("a2", "j2")))

	jobAction := &models.Action{
		ID:          "a3",
		Kind:        models.ActionUpdateJob,
		WorkspaceID: "ws",
		Payload:     models.JobPayload{Job: models.Job{ID: "j1", WorkspaceID: "ws", UpdatedAt: time.UnixMilli(1).UTC(), SyncStatus: models.SyncStatusPending}},
		CreatedAt:   time.UnixMilli(1).UTC(),
	}
	require.NoError(t, r.Enqueue(ctx, jobAction))

	entity := &models.Action{
		ID:          "a4",
		Kind:        models.ActionUpsertClient,
		WorkspaceID: "ws",
		Payload:     models.EntityPayload{Entity: "client", ID: "c1", Data: json.RawMessage(`{}`)},
		CreatedAt:   time.UnixMilli(1).UTC(),
	}
	require.NoError(t, r.Enqueue(ctx, entity))

	require.NoError(t, r.DeleteByJobID(ctx, "j1"))

	got, err := r.ListPending(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"a2", "a4"}, ids, "only actions touching j1 are dropped")
}
