package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const selectAccount = `SELECT a.id, a.username, a.password_hash, a.encrypted_email,
       COALESCE(r.name, 'USER'), a.failed_login_count, a.lockout_until,
       a.reset_token, a.reset_token_expiry, a.created_at
  FROM accounts a
  LEFT JOIN account_roles ar ON ar.account_id = a.id
  LEFT JOIN roles r ON r.id = ar.role_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a          models.Account
		role       string
		lockout    sql.NullTime
		resetToken sql.NullString
		resetExp   sql.NullTime
	)

	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.EncryptedEmail,
		&role, &a.FailedLoginCount, &lockout, &resetToken, &resetExp, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.Role = models.Role(role)
	if lockout.Valid {
		t := lockout.Time
		a.LockoutUntil = &t
	}
	if resetToken.Valid && resetExp.Valid {
		tok, exp := resetToken.String, resetExp.Time
		a.ResetToken = &tok
		a.ResetTokenExpiry = &exp
	}

	return &a, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, selectAccount+"\n WHERE "+where+"\n LIMIT 1", arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO accounts (id, username, password_hash, encrypted_email)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		account.ID, account.Username, account.PasswordHash, account.EncryptedEmail).Scan(&account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrUsernameTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, "a.id = $1", id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, "a.username = $1", username)
}

func (r *PostgresRepository) GetByEncryptedEmail(ctx context.Context, encryptedEmail []byte) (*models.Account, error) {
	return r.getOne(ctx, "a.encrypted_email = $1", encryptedEmail)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount+"\n ORDER BY a.created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*time.Time, error) {
	query :=
		`UPDATE accounts
		    SET failed_login_count = CASE WHEN failed_login_count + 1 >= $2 THEN 0 ELSE failed_login_count + 1 END,
		        lockout_until      = CASE WHEN failed_login_count + 1 >= $2 THEN $3::timestamptz ELSE NULL END
		  WHERE id = $1
		    AND (lockout_until IS NULL OR lockout_until <= $4)
		 RETURNING lockout_until`

	var until sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id, threshold, now.Add(lockFor), now).Scan(&until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if !until.Valid {
		return nil, nil
	}
	return &until.Time, nil
}

func (r *PostgresRepository) ResetLoginState(ctx context.Context, id string) error {
	return r.execOne(ctx,
		`UPDATE accounts SET failed_login_count = 0, lockout_until = NULL WHERE id = $1`, id)
}

func (r *PostgresRepository) SetLockout(ctx context.Context, id string, until time.Time) error {
	return r.execOne(ctx,
		`UPDATE accounts SET lockout_until = $2 WHERE id = $1`, id, until)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id string, token string, expiry time.Time) error {
	return r.execOne(ctx,
		`UPDATE accounts SET reset_token = $2, reset_token_expiry = $3 WHERE id = $1`, id, token, expiry)
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, encryptedEmail []byte, token string, now time.Time, passwordHash string) (string, error) {
	query :=
		`UPDATE accounts
		    SET password_hash = $4,
		        reset_token = NULL,
		        reset_token_expiry = NULL,
		        failed_login_count = 0,
		        lockout_until = NULL
		  WHERE encrypted_email = $1
		    AND reset_token = $2
		    AND reset_token_expiry > $3
		 RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query, encryptedEmail, token, now, passwordHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrInvalidOrExpiredToken
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

// execOne runs a statement expected to touch exactly one account row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
