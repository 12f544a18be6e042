package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/config"
	"github.com/dmitrijs2005/schedkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/repomanager"
)

const (
	auditPageSize   = 50
	auditTimeLayout = "02/01/2006 15:04:05"
)

// AdminService carries the administrative operations. Callers are expected
// to have checked the ADMIN role already.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	fields      *cryptox.FieldCipher
	guard       *CredentialGuard
	audit       auditor
	metrics     *metrics.Metrics
	log         logging.Logger

	now func() time.Time
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	keys *cryptox.MasterKeyStore, log logging.Logger, met *metrics.Metrics) *AdminService {
	return &AdminService{
		db:          db,
		repomanager: m,
		fields:      cryptox.NewFieldCipher(keys),
		guard:       NewCredentialGuard(db, m, cfg),
		audit:       auditor{db: db, repomanager: m, log: log},
		metrics:     met,
		log:         log,
		now:         time.Now,
	}
}

// Lock locks the account until common.PermanentLockUntil.
func (s *AdminService) Lock(ctx context.Context, actorID, accountID string) error {
	const op = "services.Admin.Lock"

	if err := s.guard.ForceLock(ctx, accountID); err != nil {
		return passThrough(ctx, s.log, op, err, common.ErrorNotFound)
	}

	s.metrics.Lockout()
	s.audit.record(ctx, actorID, models.AuditAdminLock, models.ObjectAccount, accountID)
	s.log.Info(ctx, "account locked by admin", "op", op, "account_id", accountID, "actor_id", actorID)
	return nil
}

// Unlock returns the account to the active state with a zero counter.
func (s *AdminService) Unlock(ctx context.Context, actorID, accountID string) error {
	const op = "services.Admin.Unlock"

	if err := s.guard.Unlock(ctx, accountID); err != nil {
		return passThrough(ctx, s.log, op, err, common.ErrorNotFound)
	}

	s.audit.record(ctx, actorID, models.AuditAdminUnlock, models.ObjectAccount, accountID)
	s.log.Info(ctx, "account unlocked by admin", "op", op, "account_id", accountID, "actor_id", actorID)
	return nil
}

// Delete removes the account with everything that references it, in one
// transaction. Audit rows are kept but detached from the account.
func (s *AdminService) Delete(ctx context.Context, actorID, accountID string) error {
	const op = "services.Admin.Delete"

	rm := s.repomanager
	steps := []dbx.Step{
		{Name: "roles", Run: func(ctx context.Context, tx dbx.DBTX) error {
			return rm.Roles(tx).DeleteForAccount(ctx, accountID)
		}},
		{Name: "schedules", Run: func(ctx context.Context, tx dbx.DBTX) error {
			return rm.Schedules(tx).DeleteForAccount(ctx, accountID)
		}},
		{Name: "keys", Run: func(ctx context.Context, tx dbx.DBTX) error {
			return rm.Keys(tx).DeleteForAccount(ctx, accountID)
		}},
		{Name: "messages", Run: func(ctx context.Context, tx dbx.DBTX) error {
			return rm.Messages(tx).DeleteForAccount(ctx, accountID)
		}},
		{Name: "audit logs", Run: func(ctx context.Context, tx dbx.DBTX) error {
			return rm.AuditLogs(tx).Anonymize(ctx, accountID)
		}},
		{Name: "account", Run: func(ctx context.Context, tx dbx.DBTX) error {
			return rm.Accounts(tx).Delete(ctx, accountID)
		}},
	}

	if err := dbx.RunSteps(ctx, s.db, steps); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return internalError(ctx, s.log, op, err)
	}

	s.audit.record(ctx, actorID, models.AuditAdminDelete, models.ObjectAccount, accountID)
	s.log.Info(ctx, "account deleted", "op", op, "account_id", accountID, "actor_id", actorID)
	return nil
}

// Promote replaces the account's role with STAFF.
func (s *AdminService) Promote(ctx context.Context, actorID, accountID string) error {
	const op = "services.Admin.Promote"

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Accounts(tx).GetByID(ctx, accountID); err != nil {
			return err
		}
		if err := s.repomanager.Roles(tx).DeleteForAccount(ctx, accountID); err != nil {
			return err
		}
		return s.repomanager.Roles(tx).Assign(ctx, accountID, models.RoleStaff)
	})
	if err != nil {
		return passThrough(ctx, s.log, op, err, common.ErrorNotFound)
	}

	s.audit.record(ctx, actorID, models.AuditAdminPromote, models.ObjectAccount, accountID)
	return nil
}

// ListAccounts returns every account, newest first, with the email revealed
// for display. Unreadable emails show cryptox.RevealFailedMarker.
func (s *AdminService) ListAccounts(ctx context.Context) ([]models.AccountSummary, error) {
	const op = "services.Admin.ListAccounts"

	accounts, err := s.repomanager.Accounts(s.db).List(ctx)
	if err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}

	now := s.now()
	result := make([]models.AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		var email string
		if len(a.EncryptedEmail) > 0 {
			email = s.fields.Reveal(a.EncryptedEmail)
		}
		result = append(result, models.AccountSummary{
			ID:          a.ID,
			Username:    a.Username,
			Email:       email,
			Role:        a.Role,
			IsLocked:    a.LockedAt(now),
			FailedCount: a.FailedLoginCount,
		})
	}
	return result, nil
}

// ListAuditLogs returns the newest audit rows.
func (s *AdminService) ListAuditLogs(ctx context.Context) ([]models.AuditLogView, error) {
	const op = "services.Admin.ListAuditLogs"

	logs, err := s.repomanager.AuditLogs(s.db).ListRecent(ctx, auditPageSize)
	if err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}

	result := make([]models.AuditLogView, 0, len(logs))
	for _, l := range logs {
		v := models.AuditLogView{
			Time:   l.CreatedAt.UTC().Format(auditTimeLayout),
			User:   "Unknown",
			Action: l.Action,
			Object: "-",
			Result: "Success",
		}
		if l.Username != nil {
			v.User = *l.Username
		}
		if l.ObjectType != "" {
			v.Object = l.ObjectType
		}
		if models.AuditFailed(l.Action) {
			v.Result = "Failed"
		}
		result = append(result, v)
	}
	return result, nil
}
