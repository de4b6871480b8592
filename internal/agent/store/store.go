// Package store owns the on-device SQLite database: opening, schema
// migration, and the documented purge-and-recreate fallback for schema
// mismatch or corruption.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pressly/goose/v3"
	sqlite "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/fieldsync/fieldsync/internal/agent/store/migrations"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

// sqlite primary result code for a full database or disk.
const sqliteFull = 13

// Store wraps the SQLite handle. database/sql reopens dropped connections
// transparently, so a handle closed underneath us by another process heals
// on the next query.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it to
// the current schema version.
//
// If opening or migrating fails (schema version mismatch, corruption, or an
// invalid database state) the store is purged and recreated from scratch
// instead of leaving the application permanently broken. This fallback is
// lossy; the returned recreated flag reports it so callers can surface the
// event rather than swallow it.
func Open(ctx context.Context, path string) (s *Store, recreated bool, err error) {
	db, openErr := open(ctx, path)
	if openErr == nil {
		return &Store{db: db, path: path}, false, nil
	}

	if rmErr := removeDatabaseFiles(path); rmErr != nil {
		return nil, false, errors.Join(openErr, rmErr)
	}

	db, err = open(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("recreate after purge: %w", errors.Join(openErr, err))
	}
	return &Store{db: db, path: path}, true, nil
}

func open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", syncerr.ErrStoreCorrupted, err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", syncerr.ErrSchemaMismatch, err)
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

func removeDatabaseFiles(path string) error {
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	base := strings.TrimPrefix(strings.SplitN(path, "?", 2)[0], "file:")
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(base + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", base+suffix, err)
		}
	}
	return nil
}

// DB exposes the handle for repositories.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// MapError converts driver-level failures into the shared storage taxonomy,
// so callers can distinguish "device is full" (actionable guidance, do not
// drop evidence) from a generic failure.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqliteFull {
		return fmt.Errorf("%w: %v", syncerr.ErrQuotaExceeded, err)
	}
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: %v", syncerr.ErrQuotaExceeded, err)
	}
	return err
}
