package models

import "time"

// Role is a named permission bundle shared by many users.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions PermissionMap
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPermission reports whether the role grants action on module.
// Inactive roles grant nothing.
func (r *Role) HasPermission(module Module, action Action) bool {
	if !r.IsActive {
		return false
	}
	return r.Permissions.Allows(module, action)
}

// IsSuperAdmin reports whether the role carries the wildcard permission.
func (r *Role) IsSuperAdmin() bool {
	return r.Permissions.IsWildcard()
}
