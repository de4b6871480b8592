// Package dbx is the database plumbing shared by the sqlite repositories on
// the agent and the postgres repositories on the server.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the query surface repositories operate on. Both *sql.DB and
// *sql.Tx satisfy it, so the same repository code runs standalone or under
// WithTx when several writes must land together.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: commit when fn returns nil, rollback
// on error or panic. Panics are rethrown after the rollback. Multi-row
// invariants, such as the sealed-record guard and refresh token rotation,
// depend on this being the only transaction entry point.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
