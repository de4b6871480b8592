package repomanager

import (
	"context"
	"database/sql"

	"github.com/fieldsync/fieldsync/internal/dbx"
	"github.com/fieldsync/fieldsync/internal/server/repositories/entities"
	"github.com/fieldsync/fieldsync/internal/server/repositories/jobs"
	"github.com/fieldsync/fieldsync/internal/server/repositories/refreshtokens"
	"github.com/fieldsync/fieldsync/internal/server/repositories/workspaces"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Workspaces(db dbx.DBTX) workspaces.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Jobs(db dbx.DBTX) jobs.Repository
	Entities(db dbx.DBTX) entities.Repository
}
