package roles

import (
	"context"

	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type Repository interface {
	// Assign links the account to the named role. It returns
	// common.ErrorNotFound if the role does not exist.
	Assign(ctx context.Context, accountID string, role models.Role) error
	DeleteForAccount(ctx context.Context, accountID string) error
}
