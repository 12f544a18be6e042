package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/repomanager"
)

// auditor writes audit rows on a best-effort basis: a failed write is
// logged and never fails the operation being audited.
type auditor struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func (a auditor) record(ctx context.Context, actorID, action, objectType, objectID string) {
	entry := &models.AuditLog{
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
	}
	if actorID != "" {
		entry.AccountID = &actorID
	}

	if err := a.repomanager.AuditLogs(a.db).Record(ctx, entry); err != nil {
		a.log.Warn(ctx, "audit write failed", "action", action, "error", err)
	}
}
