package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/keys"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/schedules"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Roles(db dbx.DBTX) roles.Repository
	Keys(db dbx.DBTX) keys.Repository
	Messages(db dbx.DBTX) messages.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
	Schedules(db dbx.DBTX) schedules.Repository
}
