// Package lockout implements the progressive login lockout policy: after a
// configured number of consecutive failures the account is locked for a
// configured duration, after which counting starts over.
package lockout

import (
	"context"
	"time"

	"github.com/gestion-comercial/backend/internal/server/models"
)

// CounterStore is the slice of the user repository the guard needs. Every
// method mutates counters in a single statement, so concurrent failures for
// the same account cannot lose updates.
type CounterStore interface {
	IncrementLoginAttempts(ctx context.Context, id int64) (int, error)
	ResetAfterExpiredLock(ctx context.Context, id int64) error
	SetLock(ctx context.Context, id int64, until time.Time) (bool, error)
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error
}

// Guard applies the lockout policy for one login attempt.
type Guard struct {
	store        CounterStore
	maxAttempts  int
	lockDuration time.Duration
}

// NewGuard constructs a Guard with the given policy.
func NewGuard(store CounterStore, maxAttempts int, lockDuration time.Duration) *Guard {
	return &Guard{store: store, maxAttempts: maxAttempts, lockDuration: lockDuration}
}

// IsLocked reports whether the user is currently locked out.
func (g *Guard) IsLocked(user *models.User, now time.Time) bool {
	return user.IsLocked(now)
}

// RecordFailure registers a failed password check for the user. A lock that
// has already expired is cleared first and the count restarts at one. When
// the count reaches the threshold the account is locked until now plus the
// lock duration; the conditional update means only one of several concurrent
// failures applies the lock.
func (g *Guard) RecordFailure(ctx context.Context, user *models.User, now time.Time) error {
	if user.LockUntil != nil && !user.LockUntil.After(now) {
		return g.store.ResetAfterExpiredLock(ctx, user.ID)
	}

	attempts, err := g.store.IncrementLoginAttempts(ctx, user.ID)
	if err != nil {
		return err
	}
	if attempts >= g.maxAttempts {
		if _, err := g.store.SetLock(ctx, user.ID, now.Add(g.lockDuration)); err != nil {
			return err
		}
	}
	return nil
}

// RecordSuccess clears the failure counter and any lock, and stamps the
// user's last login time.
func (g *Guard) RecordSuccess(ctx context.Context, user *models.User, now time.Time) error {
	return g.store.RecordSuccessfulLogin(ctx, user.ID, now)
}
