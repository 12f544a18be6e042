package messages

import (
	"context"

	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Message) error
	// ListForReceiver returns messages addressed to receiverID, newest first,
	// with the sender username filled in.
	ListForReceiver(ctx context.Context, receiverID string) ([]*models.Message, error)
	// DeleteForAccount removes messages the account sent or received.
	DeleteForAccount(ctx context.Context, accountID string) error
}
