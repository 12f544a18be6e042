package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, kp *models.KeyPair) error {
	query :=
		`INSERT INTO user_keys (account_id, public_key, wrapped_private_key)
		 VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, kp.AccountID, kp.PublicKey, kp.WrappedPrivateKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.KeyPair, error) {
	query :=
		`SELECT account_id, public_key, wrapped_private_key
		   FROM user_keys
		  WHERE account_id = $1`

	return r.get(ctx, query, accountID)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.KeyPair, error) {
	query :=
		`SELECT k.account_id, k.public_key, k.wrapped_private_key
		   FROM accounts a
		   JOIN user_keys k ON k.account_id = a.id
		  WHERE a.username = $1`

	return r.get(ctx, query, username)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*models.KeyPair, error) {
	kp := &models.KeyPair{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&kp.AccountID, &kp.PublicKey, &kp.WrappedPrivateKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return kp, nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_keys WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
