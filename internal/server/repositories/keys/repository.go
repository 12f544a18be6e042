package keys

import (
	"context"

	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, kp *models.KeyPair) error
	GetByAccountID(ctx context.Context, accountID string) (*models.KeyPair, error)
	// GetByUsername resolves a username to its account's key pair.
	GetByUsername(ctx context.Context, username string) (*models.KeyPair, error)
	DeleteForAccount(ctx context.Context, accountID string) error
}
