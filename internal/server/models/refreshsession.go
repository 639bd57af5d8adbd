package models

import "time"

// RefreshSession is one issued refresh token: a logged-in client/device.
// A session is usable iff it is not revoked and not expired.
type RefreshSession struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	IsRevoked bool
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *RefreshSession) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// IsValid reports whether the session can still be redeemed at now.
func (s *RefreshSession) IsValid(now time.Time) bool {
	return !s.IsRevoked && !s.IsExpired(now)
}
