package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/ratelimit"
	"github.com/dmitrijs2005/schedkeeper/internal/server/config"
	"github.com/dmitrijs2005/schedkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/notify"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/repomanager"
)

// resetTokenBytes gives 128-bit tokens, 32 hex characters.
const resetTokenBytes = 16

// Reset request outcomes reported to metrics.
const (
	resetIssued    = "issued"
	resetUnknown   = "unknown"
	resetMalformed = "malformed"
	resetThrottled = "throttled"
)

// ResetAck is the generic answer to a reset request. Token is only set when
// the server is configured to expose it and a token was actually issued.
type ResetAck struct {
	Token string
}

// ResetService issues and consumes password reset tokens.
type ResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	fields      *cryptox.FieldCipher
	notifier    notify.Publisher
	limiter     *ratelimit.KeyedLimiter
	audit       auditor
	metrics     *metrics.Metrics
	log         logging.Logger

	ttl         time.Duration
	exposeToken bool
	bcryptCost  int

	now func() time.Time
}

func NewResetService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	keys *cryptox.MasterKeyStore, notifier notify.Publisher, log logging.Logger, met *metrics.Metrics) *ResetService {
	return &ResetService{
		db:          db,
		repomanager: m,
		fields:      cryptox.NewFieldCipher(keys),
		notifier:    notifier,
		limiter:     ratelimit.PerMinute(cfg.ResetRequestsPerMinute, time.Hour),
		audit:       auditor{db: db, repomanager: m, log: log},
		metrics:     met,
		log:         log,
		ttl:         cfg.ResetTokenTTL,
		exposeToken: cfg.ExposeResetToken,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// RequestReset issues a token for the account registered with email. The
// caller always gets the same acknowledgement whether or not the email is
// known; the token travels through the notifier.
func (s *ResetService) RequestReset(ctx context.Context, email string) (*ResetAck, error) {
	const op = "services.Reset.RequestReset"

	ack := &ResetAck{}

	if !strings.Contains(email, "@") {
		s.metrics.ResetRequested(resetMalformed)
		return ack, nil
	}

	encEmail, err := s.fields.Protect(email)
	if err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}

	now := s.now()
	if !s.limiter.Allow(string(encEmail), now) {
		s.metrics.ResetRequested(resetThrottled)
		return ack, nil
	}

	account, err := s.repomanager.Accounts(s.db).GetByEncryptedEmail(ctx, encEmail)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.ResetRequested(resetUnknown)
			return ack, nil
		}
		return nil, internalError(ctx, s.log, op, err)
	}

	token, err := common.MakeRandHexString(resetTokenBytes)
	if err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}
	expiry := now.Add(s.ttl)

	if err := s.repomanager.Accounts(s.db).SetResetToken(ctx, account.ID, token, expiry); err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}

	if err := s.notifier.PublishReset(ctx, notify.ResetNotice{
		AccountID: account.ID,
		Username:  account.Username,
		Email:     email,
		Token:     token,
		ExpiresAt: expiry,
	}); err != nil {
		s.log.Warn(ctx, "reset notice not delivered", "op", op, "account_id", account.ID, "error", err)
	}

	s.metrics.ResetRequested(resetIssued)
	s.log.Info(ctx, "reset token issued", "op", op, "account_id", account.ID, "expires_at", expiry)

	if s.exposeToken {
		ack.Token = token
	}
	return ack, nil
}

// CompleteReset sets newPassword when token matches the one issued for
// email and has not expired. The token is consumed and the credential guard
// is reset in the same statement. Every rejection returns
// common.ErrInvalidOrExpiredToken.
func (s *ResetService) CompleteReset(ctx context.Context, email, token, newPassword string) error {
	const op = "services.Reset.CompleteReset"

	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", common.ErrValidation)
	}
	if token == "" || !strings.Contains(email, "@") {
		s.metrics.ResetCompleted(false)
		return common.ErrInvalidOrExpiredToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("%w: password too long", common.ErrValidation)
		}
		return internalError(ctx, s.log, op, err)
	}

	encEmail, err := s.fields.Protect(email)
	if err != nil {
		return internalError(ctx, s.log, op, err)
	}

	accountID, err := s.repomanager.Accounts(s.db).ConsumeResetToken(ctx, encEmail, token, s.now(), string(hash))
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredToken) {
			s.metrics.ResetCompleted(false)
			return err
		}
		return internalError(ctx, s.log, op, err)
	}

	s.metrics.ResetCompleted(true)
	s.audit.record(ctx, accountID, models.AuditPasswordReset, models.ObjectAccount, accountID)
	s.log.Info(ctx, "password reset completed", "op", op, "account_id", accountID)

	return nil
}
