package messages

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	var wrapped sql.NullString
	if m.Format == models.FormatHybridWrapped {
		wrapped = sql.NullString{String: m.WrappedKey, Valid: true}
	}

	query :=
		`INSERT INTO messages (id, sender_id, receiver_id, encrypted_payload, wrapped_session_key)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, m.ID, m.SenderID, m.ReceiverID, m.Payload, wrapped).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListForReceiver(ctx context.Context, receiverID string) ([]*models.Message, error) {
	query :=
		`SELECT m.id, m.sender_id, u.username, m.receiver_id,
		        m.encrypted_payload, m.wrapped_session_key, m.created_at
		   FROM messages m
		   JOIN accounts u ON u.id = m.sender_id
		  WHERE m.receiver_id = $1
		  ORDER BY m.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		var (
			m       models.Message
			wrapped sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderUsername, &m.ReceiverID,
			&m.Payload, &wrapped, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		if wrapped.Valid && wrapped.String != "" {
			m.Format = models.FormatHybridWrapped
			m.WrappedKey = wrapped.String
		} else {
			m.Format = models.FormatLegacyDirect
		}

		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	query := `DELETE FROM messages WHERE sender_id = $1 OR receiver_id = $1`
	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
