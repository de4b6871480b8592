package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/fieldsync/fieldsync/internal/dbx"
	"github.com/fieldsync/fieldsync/internal/rpc"
	entitiesrepo "github.com/fieldsync/fieldsync/internal/server/repositories/entities"
	jobsrepo "github.com/fieldsync/fieldsync/internal/server/repositories/jobs"
	refreshtokensrepo "github.com/fieldsync/fieldsync/internal/server/repositories/refreshtokens"
	workspacesrepo "github.com/fieldsync/fieldsync/internal/server/repositories/workspaces"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

type fakeRepoManager2 struct {
	jobs     *fakeJobsRepo
	entities *fakeEntitiesRepo
}

func (m *fakeRepoManager2) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager2) Workspaces(db dbx.DBTX) workspacesrepo.Repository {
	return nil
}
func (m *fakeRepoManager2) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return nil
}
func (m *fakeRepoManager2) Jobs(db dbx.DBTX) jobsrepo.Repository         { return m.jobs }
func (m *fakeRepoManager2) Entities(db dbx.DBTX) entitiesrepo.Repository { return m.entities }

type fakeJobsRepo struct {
	upsertOut rpc.JobRow
	upsertErr error
	pullOut   []rpc.JobRow

	upserted []rpc.JobRow
}

func (f *fakeJobsRepo) Upsert(ctx context.Context, row rpc.JobRow) (rpc.JobRow, error) {
	f.upserted = append(f.upserted, row)
	if f.upsertErr != nil {
		return rpc.JobRow{}, f.upsertErr
	}
	return f.upsertOut, nil
}

func (f *fakeJobsRepo) GetByID(ctx context.Context, id string) (rpc.JobRow, error) {
	return rpc.JobRow{}, syncerr.ErrNotFound
}

func (f *fakeJobsRepo) PullByWorkspace(ctx context.Context, workspaceID string) ([]rpc.JobRow, error) {
	return f.pullOut, nil
}

func (f *fakeJobsRepo) Delete(ctx context.Context, id string) error { return nil }

type fakeEntitiesRepo struct {
	upserted []rpc.EntityRow
	deleted  [][3]string
}

func (f *fakeEntitiesRepo) Upsert(ctx context.Context, row rpc.EntityRow) error {
	f.upserted = append(f.upserted, row)
	return nil
}

func (f *fakeEntitiesRepo) Delete(ctx context.Context, entity, id, workspaceID string) error {
	f.deleted = append(f.deleted, [3]string{entity, id, workspaceID})
	return nil
}

func (f *fakeEntitiesRepo) ListByWorkspace(ctx context.Context, entity, workspaceID string) ([]rpc.EntityRow, error) {
	return nil, nil
}

func newSyncService(t *testing.T, jobs *fakeJobsRepo, entities *fakeEntitiesRepo) *SyncService {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })
	return NewSyncService(db, &fakeRepoManager2{jobs: jobs, entities: entities})
}

func TestUpsertJob_Success(t *testing.T) {
	jobs := &fakeJobsRepo{upsertOut: rpc.JobRow{ID: "j1", WorkspaceID: "ws-1", UpdatedAtMs: 100}}
	s := newSyncService(t, jobs, nil)

	got, err := s.UpsertJob(context.Background(), "ws-1", rpc.JobRow{ID: "j1", WorkspaceID: "ws-1", UpdatedAtMs: 100})
	if err != nil {
		t.Fatalf("UpsertJob error: %v", err)
	}
	if got.ID != "j1" || len(jobs.upserted) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestUpsertJob_WorkspaceMismatch(t *testing.T) {
	s := newSyncService(t, &fakeJobsRepo{}, nil)

	_, err := s.UpsertJob(context.Background(), "ws-1", rpc.JobRow{ID: "j1", WorkspaceID: "ws-2"})
	if !errors.Is(err, syncerr.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestUpsertJob_MissingID(t *testing.T) {
	s := newSyncService(t, &fakeJobsRepo{}, nil)

	_, err := s.UpsertJob(context.Background(), "ws-1", rpc.JobRow{WorkspaceID: "ws-1"})
	if !errors.Is(err, syncerr.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestUpsertJob_SealedPassthrough(t *testing.T) {
	jobs := &fakeJobsRepo{upsertErr: syncerr.ErrSealed}
	s := newSyncService(t, jobs, nil)

	_, err := s.UpsertJob(context.Background(), "ws-1", rpc.JobRow{ID: "j1", WorkspaceID: "ws-1"})
	if !errors.Is(err, syncerr.ErrSealed) {
		t.Fatalf("want ErrSealed, got %v", err)
	}
}

func TestUpsertEntity_Success(t *testing.T) {
	entities := &fakeEntitiesRepo{}
	s := newSyncService(t, nil, entities)

	err := s.UpsertEntity(context.Background(), "ws-1", rpc.EntityRow{
		Entity: "client", ID: "c1", WorkspaceID: "ws-1", Payload: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("UpsertEntity error: %v", err)
	}
	if len(entities.upserted) != 1 {
		t.Fatalf("entity not stored")
	}
}

func TestDeleteEntity_ScopedToCallerWorkspace(t *testing.T) {
	entities := &fakeEntitiesRepo{}
	s := newSyncService(t, nil, entities)

	if err := s.DeleteEntity(context.Background(), "ws-1", "client", "c1"); err != nil {
		t.Fatalf("DeleteEntity error: %v", err)
	}
	if len(entities.deleted) != 1 || entities.deleted[0] != [3]string{"client", "c1", "ws-1"} {
		t.Fatalf("unexpected delete: %+v", entities.deleted)
	}
}

func TestPullJobs_ReturnsWorkspaceRows(t *testing.T) {
	jobs := &fakeJobsRepo{pullOut: []rpc.JobRow{{ID: "j1"}, {ID: "j2"}}}
	s := newSyncService(t, jobs, nil)

	got, err := s.PullJobs(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("PullJobs error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected rows: %+v", got)
	}
}
