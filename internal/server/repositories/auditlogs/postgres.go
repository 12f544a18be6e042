package auditlogs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	query :=
		`INSERT INTO audit_logs (account_id, action, object_type, object_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	var accountID sql.NullString
	if entry.AccountID != nil {
		accountID = sql.NullString{String: *entry.AccountID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, accountID, entry.Action, entry.ObjectType, entry.ObjectID).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	query :=
		`SELECT l.id, l.account_id, a.username, l.action,
		        COALESCE(l.object_type, ''), COALESCE(l.object_id, ''), l.created_at
		   FROM audit_logs l
		   LEFT JOIN accounts a ON a.id = l.account_id
		  ORDER BY l.created_at DESC
		  LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditLog
	for rows.Next() {
		var (
			e         models.AuditLog
			accountID sql.NullString
			username  sql.NullString
		)
		if err := rows.Scan(&e.ID, &accountID, &username, &e.Action, &e.ObjectType, &e.ObjectID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if accountID.Valid {
			e.AccountID = &accountID.String
		}
		if username.Valid {
			e.Username = &username.String
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Anonymize(ctx context.Context, accountID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE audit_logs SET account_id = NULL WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
