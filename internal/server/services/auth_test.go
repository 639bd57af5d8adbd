package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/server/auth"
)

func newAuthService(t *testing.T) (*AuthService, *fakeRepoManager, func()) {
	t.Helper()
	db := newTxCapableDB(t)
	rm := newFakeRepoManager()
	cfg := testConfig()
	svc := NewAuthService(db, rm, cfg, auth.NewIssuer(cfg), fakeHasher{}, testLogger())
	return svc, rm, func() { db.Close() }
}

func TestLogin_Success(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	seedUser(rm, "jdoe", "secret", 3)

	result, err := svc.Login(context.Background(), "jdoe", "secret", "10.0.0.1", "curl/8")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", result.Tokens)
	}
	if result.User.LastLogin == nil {
		t.Fatal("expected last login stamped")
	}
	if result.Permissions == nil || result.Permissions.IsAdmin {
		t.Fatalf("unexpected permission view: %+v", result.Permissions)
	}
	if len(rm.tokens.sessions) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(rm.tokens.sessions))
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	svc, _, done := newAuthService(t)
	defer done()

	_, err := svc.Login(context.Background(), "ghost", "whatever", "", "")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want common.ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 3)

	_, err := svc.Login(context.Background(), "jdoe", "wrong", "", "")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want common.ErrInvalidCredentials, got %v", err)
	}
	if user.LoginAttempts != 1 {
		t.Fatalf("attempts = %d, want 1", user.LoginAttempts)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 3)
	user.IsActive = false

	// The inactive check comes before the password check, so even correct
	// credentials report the inactive state.
	_, err := svc.Login(context.Background(), "jdoe", "secret", "", "")
	if !errors.Is(err, common.ErrAccountInactive) {
		t.Fatalf("want common.ErrAccountInactive, got %v", err)
	}
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "jdoe", "wrong", "", "")
		if !errors.Is(err, common.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: want common.ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if user.LockUntil == nil {
		t.Fatal("expected account locked after five failures")
	}

	// Even the correct password is rejected while locked.
	_, err := svc.Login(ctx, "jdoe", "secret", "", "")
	if !errors.Is(err, common.ErrAccountLocked) {
		t.Fatalf("want common.ErrAccountLocked, got %v", err)
	}

	// Once the lock expires, the correct password works and clears state.
	past := time.Now().Add(-time.Minute)
	user.LockUntil = &past
	if _, err := svc.Login(ctx, "jdoe", "secret", "", ""); err != nil {
		t.Fatalf("Login after expired lock error: %v", err)
	}
	if user.LoginAttempts != 0 || user.LockUntil != nil {
		t.Fatalf("counters not cleared: attempts=%d lock=%v", user.LoginAttempts, user.LockUntil)
	}
}

func TestRefresh_RotatesAndSingleUse(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	seedUser(rm, "jdoe", "secret", 3)
	ctx := context.Background()

	result, err := svc.Login(ctx, "jdoe", "secret", "", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	first := result.Tokens.RefreshToken

	pair, err := svc.Refresh(ctx, first, "10.0.0.2", "firefox")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if pair.RefreshToken == first {
		t.Fatal("refresh must rotate the token")
	}
	if pair.AccessToken == "" {
		t.Fatal("expected new access token")
	}

	// The consumed token is dead.
	if _, err := svc.Refresh(ctx, first, "", ""); !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("want common.ErrTokenInvalid for reused token, got %v", err)
	}

	// The rotated token still works.
	if _, err := svc.Refresh(ctx, pair.RefreshToken, "", ""); err != nil {
		t.Fatalf("Refresh of rotated token error: %v", err)
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	svc, _, done := newAuthService(t)
	defer done()

	_, err := svc.Refresh(context.Background(), "not.a.jwt", "", "")
	if !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("want common.ErrTokenInvalid, got %v", err)
	}
}

func TestRefresh_InactiveUser(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 3)
	ctx := context.Background()

	result, err := svc.Login(ctx, "jdoe", "secret", "", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	user.IsActive = false
	_, err = svc.Refresh(ctx, result.Tokens.RefreshToken, "", "")
	if !errors.Is(err, common.ErrAccountInactive) {
		t.Fatalf("want common.ErrAccountInactive, got %v", err)
	}
}

func TestRefresh_RejectedAfterAdminLock(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 3)
	ctx := context.Background()

	result, err := svc.Login(ctx, "jdoe", "secret", "", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	users := NewUserService(svc.db, rm, testConfig(), fakeHasher{}, testLogger())
	if err := users.ChangeStatus(ctx, user.ID, StatusLock, 99); err != nil {
		t.Fatalf("lock error: %v", err)
	}

	for _, session := range rm.tokens.sessions {
		if !session.IsRevoked {
			t.Fatalf("session still live after admin lock: %+v", session)
		}
	}
	if _, err := svc.Refresh(ctx, result.Tokens.RefreshToken, "", ""); !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("want common.ErrTokenInvalid for a token revoked by the lock, got %v", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	seedUser(rm, "jdoe", "secret", 3)
	ctx := context.Background()

	result, err := svc.Login(ctx, "jdoe", "secret", "", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	closed, err := svc.Logout(ctx, result.Tokens.RefreshToken)
	if err != nil || !closed {
		t.Fatalf("Logout got %v err %v", closed, err)
	}
	closed, err = svc.Logout(ctx, result.Tokens.RefreshToken)
	if err != nil || closed {
		t.Fatalf("second Logout got %v err %v, want false nil", closed, err)
	}

	// The revoked token cannot refresh.
	if _, err := svc.Refresh(ctx, result.Tokens.RefreshToken, "", ""); !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("want common.ErrTokenInvalid after logout, got %v", err)
	}
}

func TestLogoutAll_ReturnsCount(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, "jdoe", "secret", "", ""); err != nil {
			t.Fatalf("Login error: %v", err)
		}
	}

	n, err := svc.LogoutAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("LogoutAll error: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked %d sessions, want 3", n)
	}
}

func TestChangePassword(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 3)
	ctx := context.Background()

	result, err := svc.Login(ctx, "jdoe", "secret", "", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong", "newpass"); !errors.Is(err, common.ErrInvalidCurrentPassword) {
		t.Fatalf("want common.ErrInvalidCurrentPassword, got %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "secret", "newpass"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	// Every session died with the change.
	if _, err := svc.Refresh(ctx, result.Tokens.RefreshToken, "", ""); !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("want common.ErrTokenInvalid after password change, got %v", err)
	}

	// The old password no longer works, the new one does.
	if _, err := svc.Login(ctx, "jdoe", "secret", "", ""); !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want common.ErrInvalidCredentials for old password, got %v", err)
	}
	if _, err := svc.Login(ctx, "jdoe", "newpass", "", ""); err != nil {
		t.Fatalf("Login with new password error: %v", err)
	}
}

func TestVerifyPermission(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "x", 3)
	ctx := context.Background()

	allowed, err := svc.VerifyPermission(ctx, user.ID, "sales", "view")
	if err != nil || !allowed {
		t.Fatalf("sales.view got %v err %v, want allowed", allowed, err)
	}
	allowed, err = svc.VerifyPermission(ctx, user.ID, "finance", "view")
	if err != nil || allowed {
		t.Fatalf("finance.view got %v err %v, want denied", allowed, err)
	}

	if _, err := svc.VerifyPermission(ctx, 404, "sales", "view"); !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("unknown user: want common.ErrUserNotFound, got %v", err)
	}
}

func TestVerifyRolePermission(t *testing.T) {
	svc, _, done := newAuthService(t)
	defer done()

	ctx := context.Background()
	allowed, err := svc.VerifyRolePermission(ctx, 3, "sales", "view")
	if err != nil || !allowed {
		t.Fatalf("sales.view got %v err %v, want allowed", allowed, err)
	}
	allowed, err = svc.VerifyRolePermission(ctx, 3, "finance", "view")
	if err != nil || allowed {
		t.Fatalf("finance.view got %v err %v, want denied", allowed, err)
	}
}

func TestProfile(t *testing.T) {
	svc, rm, done := newAuthService(t)
	defer done()

	user := seedUser(rm, "jdoe", "secret", 1)

	got, view, err := svc.Profile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	if got.Username != "jdoe" || got.Role == nil {
		t.Fatalf("unexpected user: %+v", got)
	}
	if !view.IsAdmin {
		t.Fatal("role 1 should format as admin")
	}

	if _, _, err := svc.Profile(context.Background(), 999); !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("want common.ErrUserNotFound, got %v", err)
	}
}
