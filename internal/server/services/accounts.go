package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/auth"
	"github.com/dmitrijs2005/schedkeeper/internal/server/config"
	"github.com/dmitrijs2005/schedkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/repomanager"
)

// Session is the result of a successful login.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	UserID      string
	Username    string
	Role        models.Role
}

// dummyPasswordHash is compared against when the username is unknown so the
// response time does not reveal whether the account exists.
var dummyPasswordHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("schedkeeper-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

// AccountService registers accounts and authenticates them.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	fields      *cryptox.FieldCipher
	keys        *cryptox.MasterKeyStore
	guard       *CredentialGuard
	audit       auditor
	metrics     *metrics.Metrics
	log         logging.Logger

	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	bcryptCost                  int

	generateKeyPair func() (*cryptox.KeyPair, error)
	now             func() time.Time
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	keys *cryptox.MasterKeyStore, log logging.Logger, met *metrics.Metrics) *AccountService {
	return &AccountService{
		db:                          db,
		repomanager:                 m,
		fields:                      cryptox.NewFieldCipher(keys),
		keys:                        keys,
		guard:                       NewCredentialGuard(db, m, cfg),
		audit:                       auditor{db: db, repomanager: m, log: log},
		metrics:                     met,
		log:                         log,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		bcryptCost:                  bcrypt.DefaultCost,
		generateKeyPair:             cryptox.GenerateKeyPair,
		now:                         time.Now,
	}
}

// Register creates the account, assigns the USER role and stores a fresh
// RSA key pair with the private half wrapped under the master key. All three
// writes commit together or not at all.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (string, error) {
	const op = "services.Accounts.Register"

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", common.ErrValidation)
		}
		return "", internalError(ctx, s.log, op, err)
	}

	encEmail, err := s.fields.Protect(email)
	if err != nil {
		return "", internalError(ctx, s.log, op, err)
	}

	kp, err := s.generateKeyPair()
	if err != nil {
		return "", internalError(ctx, s.log, op, fmt.Errorf("generate key pair: %w", err))
	}

	wrapped, err := s.keys.Wrap(kp.PrivatePEM)
	if err != nil {
		return "", internalError(ctx, s.log, op, fmt.Errorf("wrap private key: %w", err))
	}

	var accountID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		account, err := s.repomanager.Accounts(tx).Create(ctx, &models.Account{
			Username:       username,
			PasswordHash:   string(hash),
			EncryptedEmail: encEmail,
			Role:           models.RoleUser,
		})
		if err != nil {
			return err
		}

		if err := s.repomanager.Roles(tx).Assign(ctx, account.ID, models.RoleUser); err != nil {
			return fmt.Errorf("assign role: %w", err)
		}

		if err := s.repomanager.Keys(tx).Create(ctx, &models.KeyPair{
			AccountID:         account.ID,
			PublicKey:         kp.PublicPEM,
			WrappedPrivateKey: wrapped,
		}); err != nil {
			return fmt.Errorf("store key pair: %w", err)
		}

		accountID = account.ID
		return nil
	})
	if err != nil {
		return "", passThrough(ctx, s.log, op, err, common.ErrUsernameTaken)
	}

	s.log.Info(ctx, "account registered", "op", op, "account_id", accountID)
	s.audit.record(ctx, accountID, models.AuditRegister, models.ObjectAccount, accountID)

	return accountID, nil
}

// Authenticate verifies the password behind the credential guard and mints
// an access token. Unknown users, wrong passwords and the attempt that
// triggers a lockout all return common.ErrInvalidCredentials. An account
// that is already locked returns *common.LockedError before the password is
// looked at.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	const op = "services.Accounts.Authenticate"

	now := s.now()

	account, err := s.repomanager.Accounts(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash(), []byte(password))
			s.metrics.Login(metrics.LoginFailure)
			s.audit.record(ctx, "", models.AuditLoginFailure, models.ObjectAccount, "")
			return nil, common.ErrInvalidCredentials
		}
		return nil, internalError(ctx, s.log, op, err)
	}

	if err := s.guard.Check(account, now); err != nil {
		s.metrics.Login(metrics.LoginLocked)
		s.audit.record(ctx, account.ID, models.AuditLoginDeniedLocked, models.ObjectAccount, account.ID)
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		until, err := s.guard.RecordFailure(ctx, account.ID, now)
		if err != nil {
			return nil, internalError(ctx, s.log, op, err)
		}

		s.metrics.Login(metrics.LoginFailure)
		s.audit.record(ctx, account.ID, models.AuditLoginFailure, models.ObjectAccount, account.ID)

		if until != nil {
			s.metrics.Lockout()
			s.audit.record(ctx, account.ID, models.AuditAccountLocked, models.ObjectAccount, account.ID)
			s.log.Warn(ctx, "account locked after failed logins", "op", op, "account_id", account.ID, "until", *until)
		}
		return nil, common.ErrInvalidCredentials
	}

	if err := s.guard.RecordSuccess(ctx, account.ID); err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}

	token, expiresAt, err := auth.GenerateToken(account, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}

	s.metrics.Login(metrics.LoginSuccess)
	s.audit.record(ctx, account.ID, models.AuditLoginSuccess, models.ObjectAccount, account.ID)

	return &Session{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		UserID:      account.ID,
		Username:    account.Username,
		Role:        account.Role,
	}, nil
}
