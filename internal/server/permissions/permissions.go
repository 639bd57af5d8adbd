// Package permissions evaluates role-based access: which actions a role may
// perform on which modules. Evaluation fails closed; an unknown role, an
// inactive role or an absent module key all deny.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/server/models"
	"github.com/gestion-comercial/backend/internal/server/repositories/roles"
)

// Service answers permission questions for roles.
type Service struct {
	roles roles.Repository
}

// NewService constructs a permission Service over the role repository.
func NewService(repo roles.Repository) *Service {
	return &Service{roles: repo}
}

func (s *Service) role(ctx context.Context, roleID int64) (*models.Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, err
	}
	return role, nil
}

// HasPermission reports whether the role may perform action on module.
// Inactive roles always deny.
func (s *Service) HasPermission(ctx context.Context, roleID int64, module models.Module, action models.Action) (bool, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return false, err
	}
	return role.HasPermission(module, action), nil
}

// CheckMultiple evaluates several "module.action" keys in one role lookup
// and returns the verdict per key. A malformed key is reported as denied.
func (s *Service) CheckMultiple(ctx context.Context, roleID int64, keys []string) (map[string]bool, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(keys))
	for _, key := range keys {
		module, action, ok := strings.Cut(key, ".")
		if !ok || module == "" || action == "" {
			result[key] = false
			continue
		}
		result[key] = role.HasPermission(models.Module(module), models.Action(action))
	}
	return result, nil
}

// IsSuperAdmin reports whether the role carries the wildcard grant.
func (s *Service) IsSuperAdmin(ctx context.Context, roleID int64) (bool, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return false, err
	}
	return role.IsSuperAdmin(), nil
}

// AccessibleModules lists the modules the role can reach with the actions
// granted on each. An inactive role can reach nothing.
func (s *Service) AccessibleModules(ctx context.Context, roleID int64) ([]models.ModuleAccess, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !role.IsActive {
		return nil, nil
	}
	return role.Permissions.AccessibleModules(), nil
}

// RolePermissions returns the raw permission map of the role.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) (models.PermissionMap, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return role.Permissions, nil
}

// ClientView is the permission summary handed to frontends after login.
type ClientView struct {
	IsAdmin     bool                 `json:"isAdmin"`
	Modules     []models.ModuleAccess `json:"modules"`
	Permissions models.PermissionMap `json:"permissions"`
}

// FormatForClient builds the summary a frontend needs to render its menus.
func (s *Service) FormatForClient(ctx context.Context, roleID int64) (*ClientView, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}

	view := &ClientView{
		IsAdmin:     role.IsSuperAdmin(),
		Permissions: role.Permissions,
	}
	if role.IsActive {
		view.Modules = role.Permissions.AccessibleModules()
	}
	return view, nil
}

// Require returns common.ErrPermissionDenied unless the role may perform
// action on module.
func (s *Service) Require(ctx context.Context, roleID int64, module models.Module, action models.Action) error {
	allowed, err := s.HasPermission(ctx, roleID, module, action)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s.%s", common.ErrPermissionDenied, module, action)
	}
	return nil
}
