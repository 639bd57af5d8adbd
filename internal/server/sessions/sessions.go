// Package sessions manages persisted refresh sessions: creation at login,
// lookup and revocation, per-user listing, and periodic cleanup of expired
// rows.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/server/auth"
	"github.com/gestion-comercial/backend/internal/server/models"
	"github.com/gestion-comercial/backend/internal/server/repositories/refreshtokens"
)

// Summary describes an active session without exposing the token value.
type Summary struct {
	ID        int64     `json:"id"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Registry tracks refresh sessions in the database. A refresh token is only
// usable while its session row is unrevoked and unexpired, so revoking the
// row kills the token regardless of its signature validity.
type Registry struct {
	repo   refreshtokens.Repository
	issuer *auth.Issuer
}

// NewRegistry constructs a Registry over the session repository.
func NewRegistry(repo refreshtokens.Repository, issuer *auth.Issuer) *Registry {
	return &Registry{repo: repo, issuer: issuer}
}

// Create mints a refresh token for the user and persists its session row
// with the client's address and agent.
func (r *Registry) Create(ctx context.Context, userID int64, ipAddress, userAgent string) (string, error) {
	token, expiresAt, err := r.issuer.IssueRefreshToken(userID)
	if err != nil {
		return "", err
	}

	_, err = r.repo.Create(ctx, &models.RefreshSession{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Validate checks a presented refresh token end to end: signature and claims
// first, then the session row. Returns the live session on success. A token
// whose row is revoked or expired maps to common.ErrTokenInvalid and
// common.ErrTokenExpired respectively.
func (r *Registry) Validate(ctx context.Context, token string) (*models.RefreshSession, error) {
	if _, err := r.issuer.ParseRefreshToken(token); err != nil {
		return nil, err
	}

	session, err := r.repo.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrTokenInvalid
		}
		return nil, err
	}
	if session.IsRevoked {
		return nil, common.ErrTokenInvalid
	}
	if session.IsExpired(time.Now()) {
		return nil, common.ErrTokenExpired
	}
	return session, nil
}

// Revoke marks the session for the token revoked. Revoking an unknown or
// already-revoked token is not an error; the return value reports whether
// this call changed anything.
func (r *Registry) Revoke(ctx context.Context, token string) (bool, error) {
	return r.repo.Revoke(ctx, token)
}

// RevokeAll revokes every live session of the user and returns the count.
func (r *Registry) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	return r.repo.RevokeAllForUser(ctx, userID)
}

// ListActive returns the user's live sessions, newest first.
func (r *Registry) ListActive(ctx context.Context, userID int64) ([]Summary, error) {
	rows, err := r.repo.ListActive(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(rows))
	for _, s := range rows {
		summaries = append(summaries, Summary{
			ID:        s.ID,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	return summaries, nil
}

// CountActive returns how many live sessions the user has.
func (r *Registry) CountActive(ctx context.Context, userID int64) (int64, error) {
	return r.repo.CountActive(ctx, userID, time.Now())
}

// SweepExpired deletes session rows whose expiry has passed and returns how
// many were removed. Revoked but unexpired rows are kept until they expire.
func (r *Registry) SweepExpired(ctx context.Context) (int64, error) {
	return r.repo.DeleteExpired(ctx, time.Now())
}
