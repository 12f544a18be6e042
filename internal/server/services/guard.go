package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/server/config"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/repomanager"
)

// CredentialGuard owns the per-account lockout state machine.
//
// An account is Active(n) with n failed attempts, or Locked(until). Failed
// attempts while active are counted by a single conditional UPDATE; reaching
// the threshold moves the account to Locked(now+lockFor) and resets n.
type CredentialGuard struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	threshold   int
	lockFor     time.Duration
}

func NewCredentialGuard(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *CredentialGuard {
	return &CredentialGuard{
		db:          db,
		repomanager: m,
		threshold:   cfg.MaxFailedLogins,
		lockFor:     cfg.LockoutDuration,
	}
}

// Check returns a *common.LockedError when the account is locked at now.
// It has no side effects.
func (g *CredentialGuard) Check(a *models.Account, now time.Time) error {
	if a.LockedAt(now) {
		return &common.LockedError{Until: *a.LockoutUntil}
	}
	return nil
}

// RecordFailure counts one failed attempt. It returns the lockout instant
// when this attempt locked the account, nil otherwise. An account that got
// locked concurrently is left untouched.
func (g *CredentialGuard) RecordFailure(ctx context.Context, accountID string, now time.Time) (*time.Time, error) {
	until, err := g.repomanager.Accounts(g.db).RecordFailedLogin(ctx, accountID, now, g.threshold, g.lockFor)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return until, err
}

// RecordSuccess returns the account to Active(0).
func (g *CredentialGuard) RecordSuccess(ctx context.Context, accountID string) error {
	return g.repomanager.Accounts(g.db).ResetLoginState(ctx, accountID)
}

// ForceLock locks the account until common.PermanentLockUntil.
func (g *CredentialGuard) ForceLock(ctx context.Context, accountID string) error {
	return g.repomanager.Accounts(g.db).SetLockout(ctx, accountID, common.PermanentLockUntil)
}

// Unlock clears any lock and the failed counter.
func (g *CredentialGuard) Unlock(ctx context.Context, accountID string) error {
	return g.repomanager.Accounts(g.db).ResetLoginState(ctx, accountID)
}
