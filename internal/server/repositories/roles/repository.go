// Package roles declares the repository contract for roles and their
// permission maps.
package roles

import (
	"context"

	"github.com/gestion-comercial/backend/internal/server/models"
)

// Repository reads role records. Roles are managed through seed data and
// administrative tooling, so the server only ever reads them.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	// ListActive returns active roles ordered by name.
	ListActive(ctx context.Context) ([]*models.Role, error)
}
