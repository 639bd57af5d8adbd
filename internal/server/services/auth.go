// Package services contains server-side business logic. This file implements
// AuthService: credential verification with progressive lockout, issuing and
// rotating token pairs, session revocation and password changes.
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
	"github.com/gestion-comercial/backend/internal/server/auth"
	"github.com/gestion-comercial/backend/internal/server/config"
	"github.com/gestion-comercial/backend/internal/server/lockout"
	"github.com/gestion-comercial/backend/internal/server/models"
	"github.com/gestion-comercial/backend/internal/server/permissions"
	"github.com/gestion-comercial/backend/internal/server/repositories/repomanager"
	"github.com/gestion-comercial/backend/internal/server/sessions"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// LoginResult is everything a client needs after a successful login.
type LoginResult struct {
	User               *models.User
	Tokens             *TokenPair
	Permissions        *permissions.ClientView
	MustChangePassword bool
}

// AuthService implements the authentication lifecycle.
type AuthService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	issuer      *auth.Issuer
	hasher      PasswordHasher
	permissions *permissions.Service
	sessions    *sessions.Registry
	guard       *lockout.Guard
	logger      logging.Logger
}

// PasswordHasher abstracts bcrypt so tests can swap in a cheap cost.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	VerifyDummy(plaintext string) bool
}

// NewAuthService wires the authentication service from its collaborators.
func NewAuthService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config,
	issuer *auth.Issuer, hasher PasswordHasher, logger logging.Logger) *AuthService {

	return &AuthService{
		db:          db,
		repos:       repos,
		issuer:      issuer,
		hasher:      hasher,
		permissions: permissions.NewService(repos.Roles(db)),
		sessions:    sessions.NewRegistry(repos.RefreshTokens(db), issuer),
		guard:       lockout.NewGuard(repos.Users(db), cfg.MaxLoginAttempts, cfg.LockDuration),
		logger:      logger,
	}
}

// Sessions exposes the session registry backing this service.
func (s *AuthService) Sessions() *sessions.Registry { return s.sessions }

// Permissions exposes the permission evaluator backing this service.
func (s *AuthService) Permissions() *permissions.Service { return s.permissions }

// Login verifies the credentials and mints a token pair. The checks run in a
// fixed order so a caller learns nothing beyond the first failure: unknown
// user, inactive account, locked account, then the password itself. Unknown
// users still pay for a bcrypt comparison so their absence is not measurable.
func (s *AuthService) Login(ctx context.Context, username, plaintext, ipAddress, userAgent string) (*LoginResult, error) {
	now := time.Now()

	user, err := s.repos.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.VerifyDummy(plaintext)
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrInternal
	}

	if !user.IsActive {
		return nil, common.ErrAccountInactive
	}
	if s.guard.IsLocked(user, now) {
		return nil, common.ErrAccountLocked
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		if err := s.guard.RecordFailure(ctx, user, now); err != nil {
			s.logger.Error(ctx, "recording failed login", "user", user.Username, "error", err)
		}
		return nil, common.ErrInvalidCredentials
	}

	if err := s.guard.RecordSuccess(ctx, user, now); err != nil {
		return nil, common.ErrInternal
	}

	pair, err := s.issueTokenPair(ctx, user, user.Role, ipAddress, userAgent)
	if err != nil {
		return nil, common.ErrInternal
	}

	view, err := s.permissions.FormatForClient(ctx, user.RoleID)
	if err != nil {
		return nil, common.ErrInternal
	}

	s.logger.Info(ctx, "login", "user", user.Username, "ip", ipAddress)
	return &LoginResult{
		User:               user,
		Tokens:             pair,
		Permissions:        view,
		MustChangePassword: user.MustChangePassword,
	}, nil
}

// Refresh rotates a refresh token: the presented token's session is revoked
// and a new pair is minted, both inside one transaction. A token that was
// already consumed, revoked or never persisted is rejected, which makes each
// refresh token single use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*TokenPair, error) {
	if _, err := s.issuer.ParseRefreshToken(refreshToken); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sessionRepo := s.repos.RefreshTokens(tx)

		session, err := sessionRepo.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrTokenInvalid
			}
			return err
		}
		if session.IsRevoked {
			return common.ErrTokenInvalid
		}
		if session.IsExpired(time.Now()) {
			return common.ErrTokenExpired
		}

		revoked, err := sessionRepo.Revoke(ctx, refreshToken)
		if err != nil {
			return err
		}
		if !revoked {
			// A concurrent refresh consumed the token first.
			return common.ErrTokenInvalid
		}

		user, err := s.repos.Users(tx).GetWithRole(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrTokenInvalid
			}
			return err
		}
		if !user.IsActive {
			return common.ErrAccountInactive
		}

		access, err := s.issuer.IssueAccessToken(user, user.Role)
		if err != nil {
			return err
		}
		refresh, expiresAt, err := s.issuer.IssueRefreshToken(user.ID)
		if err != nil {
			return err
		}
		if _, err := sessionRepo.Create(ctx, &models.RefreshSession{
			Token:     refresh,
			UserID:    user.ID,
			ExpiresAt: expiresAt,
			IPAddress: ipAddress,
			UserAgent: userAgent,
		}); err != nil {
			return err
		}

		pair = &TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    s.issuer.AccessTokenTTL(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the session of the presented refresh token. Logging out
// with an unknown or already-revoked token succeeds; the return value only
// reports whether a session was actually closed.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	return s.sessions.Revoke(ctx, refreshToken)
}

// LogoutAll revokes every session of the user and returns how many there were.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "all sessions revoked", "userId", userID, "count", n)
	return n, nil
}

// ChangePassword verifies the current password, stores the new digest and
// revokes every session, all in one transaction. Existing refresh tokens die
// with their sessions; the caller has to log in again.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUserNotFound
		}
		return common.ErrInternal
	}

	if !s.hasher.Verify(current, user.PasswordHash) {
		return common.ErrInvalidCurrentPassword
	}

	digest, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdateCredential(ctx, userID, digest, false, &userID); err != nil {
			return err
		}
		if _, err := s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
		s.logger.Info(ctx, "password changed", "userId", userID)
		return nil
	})
}

// Profile returns the user with role and the client-facing permission view.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*models.User, *permissions.ClientView, error) {
	user, err := s.repos.Users(s.db).GetWithRole(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrUserNotFound
		}
		return nil, nil, common.ErrInternal
	}

	view, err := s.permissions.FormatForClient(ctx, user.RoleID)
	if err != nil {
		return nil, nil, common.ErrInternal
	}
	return user, view, nil
}

// VerifyPermission reports whether the user may perform action on module. It
// loads the user's role assignment first and delegates to the evaluator.
func (s *AuthService) VerifyPermission(ctx context.Context, userID int64, module models.Module, action models.Action) (bool, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, common.ErrUserNotFound
		}
		return false, err
	}
	return s.permissions.HasPermission(ctx, user.RoleID, module, action)
}

// VerifyRolePermission reports whether the role may perform action on module.
// The interceptor chain uses it with the roleId carried by verified claims.
func (s *AuthService) VerifyRolePermission(ctx context.Context, roleID int64, module models.Module, action models.Action) (bool, error) {
	return s.permissions.HasPermission(ctx, roleID, module, action)
}

// VerifyAccessToken parses and validates an access token.
func (s *AuthService) VerifyAccessToken(tokenString string) (*auth.AccessClaims, error) {
	return s.issuer.ParseAccessToken(tokenString)
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User, role *models.Role, ipAddress, userAgent string) (*TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(user, role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sessions.Create(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.issuer.AccessTokenTTL(),
	}, nil
}
