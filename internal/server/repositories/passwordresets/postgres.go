package passwordresets

import (
	"context"
	"fmt"

	"github.com/gestion-comercial/backend/internal/dbx"
	"github.com/gestion-comercial/backend/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error) {
	query := `
		INSERT INTO password_resets (user_id, temporary_password, reset_by, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		reset.UserID, reset.TemporaryPassword, reset.ResetBy, reset.ExpiresAt,
	).Scan(&reset.ID, &reset.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return reset, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.PasswordReset, error) {
	query := `
		SELECT id, user_id, temporary_password, reset_by, used, expires_at, created_at
		FROM password_resets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var resets []*models.PasswordReset
	for rows.Next() {
		p := &models.PasswordReset{}
		err := rows.Scan(&p.ID, &p.UserID, &p.TemporaryPassword, &p.ResetBy,
			&p.Used, &p.ExpiresAt, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		resets = append(resets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return resets, nil
}
