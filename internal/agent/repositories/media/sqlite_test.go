package media

import (
	"context"
	"database/sql"
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
CREATE TABLE media (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL,
  data BLOB NOT NULL,
  created_at_ms INTEGER NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func TestPutGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	blob := &models.MediaBlob{
		ID:        "p1",
		JobID:     "j1",
		Data:      []byte{0xff, 0xd8, 0xff},
		CreatedAt: time.UnixMilli(1000).UTC(),
	}
	require.NoError(t, r.Put(ctx, blob))

	got, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestGet_Missing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.Get(context.Background(), "nope")
	require.ErrorIs(t, err, syncerr.ErrBlobMissing)
}

func TestDeleteByJobID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for _, b := range []*models.MediaBlob{
		{ID: "p1", JobID: "j1", Data: []byte{1}, CreatedAt: time.UnixMilli(1).UTC()},
		{ID: "p2", JobID: "j1", Data: []byte{2}, CreatedAt: time.UnixMilli(2).UTC()},
		{ID: "p3", JobID: "j2", Data: []byte{3}, CreatedAt: time.UnixMilli(3).UTC()},
	} {
		require.NoError(t, r.Put(ctx, b))
	}

	require.NoError(t, r.DeleteByJobID(ctx, "j1"))

	ids, err := r.ListIDsByJob(ctx, "j1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = r.ListIDsByJob(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, ids)
}
