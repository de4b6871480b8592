package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func mustMarshal(t *testing.T, row rpc.JobRow) []byte {
	t.Helper()
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

const upsertQ = `(?s)^\s*INSERT\s+INTO\s+jobs\b.*ON\s+CONFLICT\s*\(id\)\s+DO\s+UPDATE.*RETURNING\s+payload\s*$`

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	row := rpc.JobRow{ID: "j1", WorkspaceID: "ws-1", Title: "Replace valve", Status: "in_progress", UpdatedAtMs: 100}

	mock.ExpectQuery(upsertQ).
		WithArgs("j1", "ws-1", mustMarshal(t, row), int64(100), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(mustMarshal(t, row)))

	got, err := repo.Upsert(context.Background(), row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "j1" || got.Title != "Replace valve" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_SealedRejected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// A sealed row filters out the conflict update, so RETURNING yields no rows.
	row := rpc.JobRow{ID: "j1", WorkspaceID: "ws-1", Title: "Edited after seal", UpdatedAtMs: 200}

	mock.ExpectQuery(upsertQ).
		WithArgs("j1", "ws-1", mustMarshal(t, row), int64(200), int64(0)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Upsert(context.Background(), row)
	if !errors.Is(err, syncerr.ErrSealed) {
		t.Fatalf("want syncerr.ErrSealed, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+payload\s+FROM\s+jobs\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectQuery(q).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, syncerr.ErrNotFound) {
		t.Fatalf("want syncerr.ErrNotFound, got %v", err)
	}
}

func TestPullByWorkspace_ReturnsRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+payload\s+FROM\s+jobs\s+WHERE\s+workspace_id\s*=\s*\$1\s+ORDER\s+BY\s+updated_at_ms\s+DESC\s*$`

	j1 := mustMarshal(t, rpc.JobRow{ID: "j1", WorkspaceID: "ws-1", UpdatedAtMs: 200})
	j2 := mustMarshal(t, rpc.JobRow{ID: "j2", WorkspaceID: "ws-1", UpdatedAtMs: 100})

	mock.ExpectQuery(q).
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(j1).AddRow(j2))

	got, err := repo.PullByWorkspace(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "j1" || got[1].ID != "j2" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*DELETE\s+FROM\s+jobs\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).WithArgs("j1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "j1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
