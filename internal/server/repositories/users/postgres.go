// Package users provides a PostgreSQL-backed repository for user records.
package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/dbx"
	"github.com/gestion-comercial/backend/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role_id,
	is_active, must_change_password, last_login, login_attempts, lock_until,
	created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.RoleID,
		&u.IsActive, &u.MustChangePassword, &u.LastLogin, &u.LoginAttempts, &u.LockUntil,
		&u.CreatedBy, &u.UpdatedBy, &u.DeletedBy, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name,
			role_id, is_active, must_change_password, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.RoleID, user.IsActive, user.MustChangePassword, user.CreatedBy,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

const userWithRoleQuery = `
	SELECT u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name, u.role_id,
		u.is_active, u.must_change_password, u.last_login, u.login_attempts, u.lock_until,
		u.created_by, u.updated_by, u.deleted_by, u.created_at, u.updated_at, u.deleted_at,
		r.id, r.name, r.description, r.permissions, r.is_active
	FROM users u
	JOIN roles r ON r.id = u.role_id
	WHERE %s AND u.deleted_at IS NULL
`

func (r *PostgresRepository) getWithRole(ctx context.Context, where string, arg any) (*models.User, error) {
	query := fmt.Sprintf(userWithRoleQuery, where)

	u := &models.User{}
	role := &models.Role{}
	var rawPermissions []byte
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.RoleID,
		&u.IsActive, &u.MustChangePassword, &u.LastLogin, &u.LoginAttempts, &u.LockUntil,
		&u.CreatedBy, &u.UpdatedBy, &u.DeletedBy, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
		&role.ID, &role.Name, &role.Description, &rawPermissions, &role.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(rawPermissions, &role.Permissions); err != nil {
		return nil, fmt.Errorf("error decoding role permissions: %w", err)
	}
	u.Role = role
	return u, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getWithRole(ctx, "u.username = $1", username)
}

func (r *PostgresRepository) GetWithRole(ctx context.Context, id int64) (*models.User, error) {
	return r.getWithRole(ctx, "u.id = $1", id)
}

func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]*models.User, int64, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(username ILIKE $%d OR email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)",
			n, n, n, n))
	}
	if filter.RoleID != nil {
		args = append(args, *filter.RoleID)
		where = append(where, fmt.Sprintf("role_id = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM users WHERE " + cond
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf("SELECT "+userColumns+" FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		cond, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return users, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, first_name = $4, last_name = $5,
			role_id = $6, is_active = $7, updated_by = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.RoleID, user.IsActive, user.UpdatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) UpdateCredential(ctx context.Context, id int64, passwordHash string, mustChange bool, updatedBy *int64) error {
	query := `
		UPDATE users
		SET password_hash = $2, must_change_password = $3, updated_by = $4, updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, mustChange, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.exists(ctx, "username", username, excludeID)
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

func (r *PostgresRepository) exists(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS (SELECT 1 FROM users WHERE %s = $1 AND id <> $2 AND deleted_at IS NULL)", column)
	var found bool
	if err := r.db.QueryRowContext(ctx, query, value, excludeID).Scan(&found); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return found, nil
}

func (r *PostgresRepository) IncrementLoginAttempts(ctx context.Context, id int64) (int, error) {
	query := `
		UPDATE users
		SET login_attempts = login_attempts + 1, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING login_attempts
	`
	var attempts int
	if err := r.db.QueryRowContext(ctx, query, id, time.Now()).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

func (r *PostgresRepository) ResetAfterExpiredLock(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET login_attempts = 1, lock_until = NULL, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) SetLock(ctx context.Context, id int64, until time.Time) (bool, error) {
	query := `
		UPDATE users
		SET lock_until = $2, updated_at = $3
		WHERE id = $1 AND lock_until IS NULL AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, until, time.Now())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) ForceLock(ctx context.Context, id int64, until time.Time, updatedBy int64) error {
	query := `
		UPDATE users
		SET lock_until = $2, updated_by = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, until, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Unlock(ctx context.Context, id int64, updatedBy int64) error {
	query := `
		UPDATE users
		SET login_attempts = 0, lock_until = NULL, updated_by = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE users
		SET login_attempts = 0, lock_until = NULL, last_login = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Activate(ctx context.Context, id int64, updatedBy int64) error {
	query := `
		UPDATE users
		SET is_active = TRUE, login_attempts = 0, lock_until = NULL, updated_by = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id int64, updatedBy int64) error {
	query := `
		UPDATE users
		SET is_active = FALSE, updated_by = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id int64, deletedBy int64) error {
	query := `
		UPDATE users
		SET is_active = FALSE, deleted_by = $2, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, deletedBy, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row update into common.ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
