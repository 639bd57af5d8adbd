package models

import "time"

// User is an identity record. PasswordHash is never serialized and never
// returned by any API projection.
type User struct {
	ID                 int64
	Username           string
	Email              string
	PasswordHash       string
	FirstName          string
	LastName           string
	RoleID             int64
	Role               *Role
	IsActive           bool
	MustChangePassword bool
	LastLogin          *time.Time
	LoginAttempts      int
	LockUntil          *time.Time
	CreatedBy          *int64
	UpdatedBy          *int64
	DeletedBy          *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// FullName joins first and last name with a single space.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsLocked reports whether the account lock is still in effect at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}
