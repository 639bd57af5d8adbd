// This file implements UserService: administrative account management on top
// of the same repositories AuthService uses.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/dbx"
	"github.com/gestion-comercial/backend/internal/logging"
	"github.com/gestion-comercial/backend/internal/server/config"
	"github.com/gestion-comercial/backend/internal/server/models"
	"github.com/gestion-comercial/backend/internal/server/repositories/repomanager"
	"github.com/gestion-comercial/backend/internal/server/repositories/users"
)

// StatusChange is an administrative account-state transition.
type StatusChange string

const (
	StatusActivate   StatusChange = "activate"
	StatusDeactivate StatusChange = "deactivate"
	StatusUnlock     StatusChange = "unlock"
	StatusLock       StatusChange = "lock"
)

// CreateUserInput carries the fields for a new account.
type CreateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	RoleID    int64
}

// UpdateUserInput carries the editable fields of an existing account.
type UpdateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	RoleID    int64
	IsActive  bool
}

// Availability reports whether a username and an email are free to use.
type Availability struct {
	UsernameAvailable bool
	EmailAvailable    bool
}

// UserService implements administrative user management. Every mutating
// method takes the acting administrator's id for the audit columns.
type UserService struct {
	db           *sql.DB
	repos        repomanager.RepositoryManager
	hasher       PasswordHasher
	tempPassword func() (string, error)
	adminLock    time.Duration
	tempValidity time.Duration
	logger       logging.Logger
}

// NewUserService wires the user management service.
func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config,
	hasher PasswordHasher, logger logging.Logger) *UserService {

	return &UserService{
		db:           db,
		repos:        repos,
		hasher:       hasher,
		tempPassword: common.GenerateTempPassword,
		adminLock:    cfg.AdminLockDuration,
		tempValidity: cfg.TempPasswordValidityDuration,
		logger:       logger,
	}
}

// List returns a page of users plus the total match count.
func (s *UserService) List(ctx context.Context, filter users.Filter) ([]*models.User, int64, error) {
	return s.repos.Users(s.db).List(ctx, filter)
}

// GetByID returns the user with its role loaded.
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetWithRole(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Create makes a new account with a generated temporary password and returns
// both. The account starts active and flagged to change the password on
// first login. The plaintext temporary password exists only in the return
// value; the database sees its bcrypt digest.
func (s *UserService) Create(ctx context.Context, input CreateUserInput, createdBy int64) (*models.User, string, error) {
	repo := s.repos.Users(s.db)

	if err := s.checkUnique(ctx, repo, input.Username, input.Email, 0); err != nil {
		return nil, "", err
	}
	if _, err := s.repos.Roles(s.db).GetByID(ctx, input.RoleID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, "", common.ErrRoleNotFound
		}
		return nil, "", err
	}

	plaintext, err := s.tempPassword()
	if err != nil {
		return nil, "", fmt.Errorf("error generating temporary password: %w", err)
	}
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, "", fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username:           input.Username,
		Email:              input.Email,
		PasswordHash:       digest,
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		RoleID:             input.RoleID,
		IsActive:           true,
		MustChangePassword: true,
		CreatedBy:          &createdBy,
	}
	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info(ctx, "user created", "user", created.Username, "by", createdBy)
	return created, plaintext, nil
}

// Update edits an account's profile fields, re-checking uniqueness against
// everyone but the account itself.
func (s *UserService) Update(ctx context.Context, id int64, input UpdateUserInput, updatedBy int64) (*models.User, error) {
	repo := s.repos.Users(s.db)

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, err
	}

	if err := s.checkUnique(ctx, repo, input.Username, input.Email, id); err != nil {
		return nil, err
	}
	if input.RoleID != user.RoleID {
		if _, err := s.repos.Roles(s.db).GetByID(ctx, input.RoleID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.ErrRoleNotFound
			}
			return nil, err
		}
	}

	user.Username = input.Username
	user.Email = input.Email
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	user.RoleID = input.RoleID
	user.IsActive = input.IsActive
	user.UpdatedBy = &updatedBy

	if err := repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete soft-deletes an account and revokes its sessions. Administrators
// cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id, deletedBy int64) error {
	if id == deletedBy {
		return common.ErrSelfDelete
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		if err := repo.Deactivate(ctx, id, deletedBy); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrUserNotFound
			}
			return err
		}
		if err := repo.SoftDelete(ctx, id, deletedBy); err != nil {
			return err
		}
		if _, err := s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, id); err != nil {
			return err
		}
		s.logger.Info(ctx, "user deleted", "userId", id, "by", deletedBy)
		return nil
	})
}

// ResetPassword generates a fresh temporary password for the account, stores
// its digest, records the reset for audit and revokes every session. The
// plaintext is returned once for the administrator to hand over.
func (s *UserService) ResetPassword(ctx context.Context, id, resetBy int64) (string, error) {
	if _, err := s.repos.Users(s.db).GetByID(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUserNotFound
		}
		return "", err
	}

	plaintext, err := s.tempPassword()
	if err != nil {
		return "", fmt.Errorf("error generating temporary password: %w", err)
	}
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdateCredential(ctx, id, digest, true, &resetBy); err != nil {
			return err
		}
		if _, err := s.repos.PasswordResets(tx).Create(ctx, &models.PasswordReset{
			UserID:            id,
			TemporaryPassword: digest,
			ResetBy:           &resetBy,
			ExpiresAt:         time.Now().Add(s.tempValidity),
		}); err != nil {
			return err
		}
		if _, err := s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info(ctx, "password reset", "userId", id, "by", resetBy)
	return plaintext, nil
}

// ChangeStatus applies an administrative state transition. Deactivating and
// locking also revoke the account's sessions; administrators cannot
// deactivate themselves. Lock applies the longer administrative lock
// duration.
func (s *UserService) ChangeStatus(ctx context.Context, id int64, change StatusChange, changedBy int64) error {
	switch change {
	case StatusActivate:
		return s.wrapNotFound(s.repos.Users(s.db).Activate(ctx, id, changedBy))

	case StatusDeactivate:
		if id == changedBy {
			return common.ErrSelfDeactivate
		}
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repos.Users(tx).Deactivate(ctx, id, changedBy); err != nil {
				return s.wrapNotFound(err)
			}
			_, err := s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, id)
			return err
		})

	case StatusUnlock:
		return s.wrapNotFound(s.repos.Users(s.db).Unlock(ctx, id, changedBy))

	case StatusLock:
		until := time.Now().Add(s.adminLock)
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repos.Users(tx).ForceLock(ctx, id, until, changedBy); err != nil {
				return s.wrapNotFound(err)
			}
			_, err := s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, id)
			return err
		})

	default:
		return fmt.Errorf("unknown status change %q", change)
	}
}

// CheckAvailability reports whether the username and email are free,
// excluding the given account id (zero to exclude nobody).
func (s *UserService) CheckAvailability(ctx context.Context, username, email string, excludeID int64) (*Availability, error) {
	repo := s.repos.Users(s.db)

	usernameTaken, err := repo.UsernameExists(ctx, username, excludeID)
	if err != nil {
		return nil, err
	}
	emailTaken, err := repo.EmailExists(ctx, email, excludeID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		UsernameAvailable: !usernameTaken,
		EmailAvailable:    !emailTaken,
	}, nil
}

// AvailableRoles lists the active roles an account can be assigned.
func (s *UserService) AvailableRoles(ctx context.Context) ([]*models.Role, error) {
	return s.repos.Roles(s.db).ListActive(ctx)
}

func (s *UserService) checkUnique(ctx context.Context, repo users.Repository, username, email string, excludeID int64) error {
	taken, err := repo.UsernameExists(ctx, username, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return common.ErrUsernameTaken
	}
	taken, err = repo.EmailExists(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return common.ErrEmailTaken
	}
	return nil
}

func (s *UserService) wrapNotFound(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrUserNotFound
	}
	return err
}
