// Package common contains shared constants and sentinel errors used across
// the backend. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Generic service-level errors.
	ErrInternal = errors.New("internal error")

	// Authentication errors. A wrong username and a wrong password both
	// surface as ErrInvalidCredentials so account existence never leaks.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account locked after repeated failed attempts")
	ErrAccountInactive    = errors.New("account is inactive")

	// Token lifecycle errors. A revoked or unknown refresh token is
	// reported as ErrTokenInvalid, same as a forged one.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")

	// Lookup errors.
	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")

	// Password lifecycle errors.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")

	// User management errors.
	ErrUsernameTaken    = errors.New("username already in use")
	ErrEmailTaken       = errors.New("email already in use")
	ErrSelfDelete       = errors.New("cannot delete own account")
	ErrSelfDeactivate   = errors.New("cannot deactivate own account")
	ErrPermissionDenied = errors.New("permission denied")
)
