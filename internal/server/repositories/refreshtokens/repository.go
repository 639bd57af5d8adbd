// Package refreshtokens declares the repository contract for persisted
// refresh sessions.
package refreshtokens

import (
	"context"
	"time"

	"github.com/gestion-comercial/backend/internal/server/models"
)

// Repository persists refresh sessions. Revocation methods are single
// conditional statements so a token presented twice concurrently can only be
// consumed once.
type Repository interface {
	Create(ctx context.Context, session *models.RefreshSession) (*models.RefreshSession, error)
	Find(ctx context.Context, token string) (*models.RefreshSession, error)
	// Revoke marks the session revoked if it was not already. Reports
	// whether this call performed the revocation.
	Revoke(ctx context.Context, token string) (bool, error)
	// RevokeAllForUser revokes every live session of the user and returns
	// how many were revoked.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	// ListActive returns the user's unrevoked, unexpired sessions, newest
	// first.
	ListActive(ctx context.Context, userID int64, now time.Time) ([]*models.RefreshSession, error)
	CountActive(ctx context.Context, userID int64, now time.Time) (int64, error)
	// DeleteExpired removes rows whose expiry has passed and returns how
	// many were deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
