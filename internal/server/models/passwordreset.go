package models

import "time"

// PasswordReset is an append-only audit record of an administrator-initiated
// password reset. TemporaryPassword holds the bcrypt hash, never plaintext.
type PasswordReset struct {
	ID                int64
	UserID            int64
	TemporaryPassword string
	ResetBy           *int64
	Used              bool
	ExpiresAt         time.Time
	CreatedAt         time.Time
}
