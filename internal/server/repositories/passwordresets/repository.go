// Package passwordresets declares the repository contract for the audit
// trail of administrative password resets.
package passwordresets

import (
	"context"

	"github.com/gestion-comercial/backend/internal/server/models"
)

// Repository records password resets performed by administrators. Rows hold
// only the bcrypt digest of the temporary password, never the plaintext.
type Repository interface {
	Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error)
	// ListByUser returns the user's reset history, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*models.PasswordReset, error)
}
