package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEncryptedEmail(ctx context.Context, encryptedEmail []byte) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Delete(ctx context.Context, id string) error

	// RecordFailedLogin increments the failed counter of an account that is
	// not currently locked. When the counter reaches threshold the account is
	// locked until now+lockFor and the counter is reset. It returns the new
	// lockout instant, or nil if the account stays active.
	RecordFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*time.Time, error)
	ResetLoginState(ctx context.Context, id string) error
	SetLockout(ctx context.Context, id string, until time.Time) error

	SetResetToken(ctx context.Context, id string, token string, expiry time.Time) error
	// ConsumeResetToken sets passwordHash on the account matching
	// encryptedEmail whose reset token equals token and has not expired at
	// now, clearing the token and the login guard state. It returns the
	// account id.
	ConsumeResetToken(ctx context.Context, encryptedEmail []byte, token string, now time.Time, passwordHash string) (string, error)
}
