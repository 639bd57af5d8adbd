package roles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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

const roleColumns = `id, name, description, permissions, is_active, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (*models.Role, error) {
	role := &models.Role{}
	var rawPermissions []byte
	err := row.Scan(&role.ID, &role.Name, &role.Description, &rawPermissions,
		&role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawPermissions, &role.Permissions); err != nil {
		return nil, fmt.Errorf("error decoding role permissions: %w", err)
	}
	return role, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`

	role, err := scanRole(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`

	role, err := scanRole(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE is_active = TRUE ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
