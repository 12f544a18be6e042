// Package notify delivers password reset tokens out of band.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/schedkeeper/internal/logging"
)

// ResetNotice is the payload handed to the delivery channel.
type ResetNotice struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Publisher interface {
	PublishReset(ctx context.Context, n ResetNotice) error
	Close() error
}

// LogPublisher only records that a notice was produced. Sensitive fields
// are masked by the redacting log handler.
type LogPublisher struct {
	log logging.Logger
}

func NewLogPublisher(log logging.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishReset(ctx context.Context, n ResetNotice) error {
	p.log.Info(ctx, "password reset issued",
		"account_id", n.AccountID,
		"reset_token", n.Token,
		"email", n.Email,
		"expires_at", n.ExpiresAt,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
