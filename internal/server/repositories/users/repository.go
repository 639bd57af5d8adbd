// Package users declares the repository contract for user records.
package users

import (
	"context"
	"time"

	"github.com/gestion-comercial/backend/internal/server/models"
)

// Filter narrows and paginates List results. Search matches username, email,
// first name and last name case-insensitively. Nil pointer fields are not
// applied.
type Filter struct {
	Search   string
	RoleID   *int64
	IsActive *bool
	Page     int
	Limit    int
}

// Repository persists user records. Soft-deleted users are invisible to
// every method except SoftDelete itself. The lockout-counter methods are
// expressed as single SQL statements so concurrent logins for the same user
// cannot lose updates.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	// GetByUsername loads the user together with its role.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// GetWithRole loads the user by id together with its role.
	GetWithRole(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, filter Filter) ([]*models.User, int64, error)
	Update(ctx context.Context, user *models.User) error
	UpdateCredential(ctx context.Context, id int64, passwordHash string, mustChange bool, updatedBy *int64) error

	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)

	// IncrementLoginAttempts atomically bumps the failed-login counter and
	// returns the new value.
	IncrementLoginAttempts(ctx context.Context, id int64) (int, error)
	// ResetAfterExpiredLock sets the counter to 1 and clears the stale lock.
	ResetAfterExpiredLock(ctx context.Context, id int64) error
	// SetLock locks the account until the given time, only if no lock is
	// currently set. Reports whether the lock was applied.
	SetLock(ctx context.Context, id int64, until time.Time) (bool, error)
	// ForceLock locks the account unconditionally (administrator action).
	ForceLock(ctx context.Context, id int64, until time.Time, updatedBy int64) error
	// Unlock clears the counter and lock (administrator action).
	Unlock(ctx context.Context, id int64, updatedBy int64) error
	// RecordSuccessfulLogin clears the counter and lock and stamps last_login.
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error

	Activate(ctx context.Context, id int64, updatedBy int64) error
	Deactivate(ctx context.Context, id int64, updatedBy int64) error
	SoftDelete(ctx context.Context, id int64, deletedBy int64) error
}
