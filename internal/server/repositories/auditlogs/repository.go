package auditlogs

import (
	"context"

	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type Repository interface {
	Record(ctx context.Context, entry *models.AuditLog) error
	// ListRecent returns up to limit rows, newest first, with the actor
	// username when the account still exists.
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
	// Anonymize detaches all rows from the account.
	Anonymize(ctx context.Context, accountID string) error
}
