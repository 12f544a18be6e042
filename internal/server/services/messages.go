package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/repomanager"
)

const (
	// InboxDecryptErrorPlaceholder replaces a hybrid message that could not
	// be decrypted.
	InboxDecryptErrorPlaceholder = "[hybrid decryption error]"
	// InboxLegacyPlaceholder replaces a legacy direct-RSA message that could
	// not be decrypted.
	InboxLegacyPlaceholder = "Legacy message (plain RSA, unreadable)"

	inboxTimeLayout = "02/01/2006 15:04"
)

// MessageService sends hybrid-encrypted messages between accounts and
// decrypts inboxes.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keys        *cryptox.MasterKeyStore
	audit       auditor
	metrics     *metrics.Metrics
	log         logging.Logger
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager,
	keys *cryptox.MasterKeyStore, log logging.Logger, met *metrics.Metrics) *MessageService {
	return &MessageService{
		db:          db,
		repomanager: m,
		keys:        keys,
		audit:       auditor{db: db, repomanager: m, log: log},
		metrics:     met,
		log:         log,
	}
}

// SendMessage seals plaintext for the receiver's public key under a fresh
// session key and stores it.
func (s *MessageService) SendMessage(ctx context.Context, senderID, receiverUsername, plaintext string) error {
	const op = "services.Messages.SendMessage"

	receiverUsername = strings.TrimSpace(receiverUsername)
	if receiverUsername == "" || plaintext == "" {
		return fmt.Errorf("%w: receiver and content are required", common.ErrValidation)
	}

	kp, err := s.repomanager.Keys(s.db).GetByUsername(ctx, receiverUsername)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrRecipientKeyMissing
		}
		return internalError(ctx, s.log, op, err)
	}

	pub, err := cryptox.ParsePublicKey(kp.PublicKey)
	if err != nil {
		return internalError(ctx, s.log, op, fmt.Errorf("receiver public key: %w", err))
	}

	env, err := cryptox.SealHybrid(plaintext, pub)
	if err != nil {
		return internalError(ctx, s.log, op, err)
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: kp.AccountID,
		Format:     models.FormatHybridWrapped,
		Payload:    env.Payload,
		WrappedKey: env.WrappedKey,
	}
	if err := s.repomanager.Messages(s.db).Create(ctx, msg); err != nil {
		return internalError(ctx, s.log, op, err)
	}

	s.metrics.MessageSent()
	s.audit.record(ctx, senderID, models.AuditMessageSent, models.ObjectMessage, msg.ID)

	return nil
}

// ReadInbox returns the receiver's messages, newest first. The receiver's
// own key must be readable; a message that fails to decrypt is replaced by
// a placeholder and does not affect the others.
func (s *MessageService) ReadInbox(ctx context.Context, receiverID string) ([]models.InboxEntry, error) {
	const op = "services.Messages.ReadInbox"

	kp, err := s.repomanager.Keys(s.db).GetByAccountID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrOwnKeyMissing
		}
		return nil, internalError(ctx, s.log, op, err)
	}

	privPEM, err := s.keys.Unwrap(kp.WrappedPrivateKey)
	if err != nil {
		return nil, internalError(ctx, s.log, op, fmt.Errorf("unwrap private key: %w", err))
	}
	priv, err := cryptox.ParsePrivateKey(privPEM)
	if err != nil {
		return nil, internalError(ctx, s.log, op, fmt.Errorf("parse private key: %w", err))
	}

	msgs, err := s.repomanager.Messages(s.db).ListForReceiver(ctx, receiverID)
	if err != nil {
		return nil, internalError(ctx, s.log, op, err)
	}

	entries := make([]models.InboxEntry, 0, len(msgs))
	for _, m := range msgs {
		var content string
		var derr error

		switch m.Format {
		case models.FormatHybridWrapped:
			content, derr = cryptox.OpenHybrid(cryptox.Envelope{Payload: m.Payload, WrappedKey: m.WrappedKey}, priv)
			if derr != nil {
				content = InboxDecryptErrorPlaceholder
			}
		case models.FormatLegacyDirect:
			content, derr = cryptox.OpenLegacy(m.Payload, priv)
			if derr != nil {
				content = InboxLegacyPlaceholder
			}
		default:
			derr = fmt.Errorf("unknown message format %d", m.Format)
			content = InboxDecryptErrorPlaceholder
		}

		if derr != nil {
			s.metrics.InboxFailure(m.Format.String())
			s.log.Debug(ctx, "message not decrypted", "op", op, "message_id", m.ID, "format", m.Format.String())
		} else {
			s.metrics.InboxDecrypted()
		}

		entries = append(entries, models.InboxEntry{
			Sender:  m.SenderUsername,
			Content: content,
			SentAt:  m.CreatedAt.UTC().Format(inboxTimeLayout),
		})
	}

	return entries, nil
}
