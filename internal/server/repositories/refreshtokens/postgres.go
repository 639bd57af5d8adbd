package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gestion-comercial/backend/internal/common"
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

const sessionColumns = `id, token, user_id, expires_at, is_revoked, ip_address, user_agent, created_at`

func scanSession(row interface{ Scan(...any) error }) (*models.RefreshSession, error) {
	s := &models.RefreshSession{}
	err := row.Scan(&s.ID, &s.Token, &s.UserID, &s.ExpiresAt, &s.IsRevoked,
		&s.IPAddress, &s.UserAgent, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.RefreshSession) (*models.RefreshSession, error) {
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		session.Token, session.UserID, session.ExpiresAt, session.IPAddress, session.UserAgent,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE token = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, token string) (bool, error) {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1 AND is_revoked = FALSE`

	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, userID int64, now time.Time) ([]*models.RefreshSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var sessions []*models.RefreshSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sessions, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2
	`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
