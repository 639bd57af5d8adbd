package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/dbx"
	"github.com/gestion-comercial/backend/internal/logging"
	"github.com/gestion-comercial/backend/internal/server/config"
	"github.com/gestion-comercial/backend/internal/server/models"
	passwordresetsrepo "github.com/gestion-comercial/backend/internal/server/repositories/passwordresets"
	refreshtokensrepo "github.com/gestion-comercial/backend/internal/server/repositories/refreshtokens"
	rolesrepo "github.com/gestion-comercial/backend/internal/server/repositories/roles"
	usersrepo "github.com/gestion-comercial/backend/internal/server/repositories/users"
)

// --- in-memory fakes shared by the service tests ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

// newTxCapableDB opens an in-memory sqlite database. The service tests only
// need it for real BeginTx/Commit semantics; all statements go to fakes.
func newTxCapableDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open error: %v", err)
	}
	return db
}

type fakeHasher struct{}

func (fakeHasher) Hash(plaintext string) (string, error) { return "bcrypt:" + plaintext, nil }
func (fakeHasher) Verify(plaintext, digest string) bool  { return digest == "bcrypt:"+plaintext }
func (fakeHasher) VerifyDummy(plaintext string) bool {
	// Burn comparable time to the real implementation.
	_ = bcrypt.CompareHashAndPassword([]byte("$2a$04$invalidsaltinvalidsalti"), []byte(plaintext))
	return false
}

type fakeRolesRepo struct {
	roles map[int64]*models.Role
}

func (f *fakeRolesRepo) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return role, nil
}

func (f *fakeRolesRepo) GetByName(ctx context.Context, name string) (*models.Role, error) {
	for _, role := range f.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeRolesRepo) ListActive(ctx context.Context) ([]*models.Role, error) {
	var out []*models.Role
	for _, role := range f.roles {
		if role.IsActive {
			out = append(out, role)
		}
	}
	return out, nil
}

type fakeUsersRepo struct {
	nextID int64
	users  map[int64]*models.User
	roles  *fakeRolesRepo
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) get(id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return f.get(id)
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username && u.DeletedAt == nil {
			if role, err := f.roles.GetByID(ctx, u.RoleID); err == nil {
				u.Role = role
			}
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetWithRole(ctx context.Context, id int64) (*models.User, error) {
	u, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if role, err := f.roles.GetByID(ctx, u.RoleID); err == nil {
		u.Role = role
	}
	return u, nil
}

func (f *fakeUsersRepo) List(ctx context.Context, filter usersrepo.Filter) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range f.users {
		if u.DeletedAt != nil {
			continue
		}
		if filter.Search != "" && !strings.Contains(u.Username, filter.Search) {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) error {
	if _, err := f.get(u.ID); err != nil {
		return err
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsersRepo) UpdateCredential(ctx context.Context, id int64, hash string, mustChange bool, updatedBy *int64) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.MustChangePassword = mustChange
	u.UpdatedBy = updatedBy
	return nil
}

func (f *fakeUsersRepo) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	for _, u := range f.users {
		if u.Username == username && u.ID != excludeID && u.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	for _, u := range f.users {
		if u.Email == email && u.ID != excludeID && u.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) IncrementLoginAttempts(ctx context.Context, id int64) (int, error) {
	u, err := f.get(id)
	if err != nil {
		return 0, err
	}
	u.LoginAttempts++
	return u.LoginAttempts, nil
}

func (f *fakeUsersRepo) ResetAfterExpiredLock(ctx context.Context, id int64) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.LoginAttempts = 1
	u.LockUntil = nil
	return nil
}

func (f *fakeUsersRepo) SetLock(ctx context.Context, id int64, until time.Time) (bool, error) {
	u, err := f.get(id)
	if err != nil {
		return false, err
	}
	if u.LockUntil != nil {
		return false, nil
	}
	u.LockUntil = &until
	return true, nil
}

func (f *fakeUsersRepo) ForceLock(ctx context.Context, id int64, until time.Time, updatedBy int64) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.LockUntil = &until
	u.UpdatedBy = &updatedBy
	return nil
}

func (f *fakeUsersRepo) Unlock(ctx context.Context, id int64, updatedBy int64) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.UpdatedBy = &updatedBy
	return nil
}

func (f *fakeUsersRepo) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.LastLogin = &at
	return nil
}

func (f *fakeUsersRepo) Activate(ctx context.Context, id int64, updatedBy int64) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.IsActive = true
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.UpdatedBy = &updatedBy
	return nil
}

func (f *fakeUsersRepo) Deactivate(ctx context.Context, id int64, updatedBy int64) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.IsActive = false
	u.UpdatedBy = &updatedBy
	return nil
}

func (f *fakeUsersRepo) SoftDelete(ctx context.Context, id int64, deletedBy int64) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	now := time.Now()
	u.IsActive = false
	u.DeletedBy = &deletedBy
	u.DeletedAt = &now
	return nil
}

type fakeRefreshRepo struct {
	nextID   int64
	sessions map[string]*models.RefreshSession
}

func (f *fakeRefreshRepo) Create(ctx context.Context, s *models.RefreshSession) (*models.RefreshSession, error) {
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = time.Now()
	f.sessions[s.Token] = s
	return s, nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshSession, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return s, nil
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, token string) (bool, error) {
	s, ok := f.sessions[token]
	if !ok || s.IsRevoked {
		return false, nil
	}
	s.IsRevoked = true
	return true, nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for _, s := range f.sessions {
		if s.UserID == userID && !s.IsRevoked {
			s.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) ListActive(ctx context.Context, userID int64, now time.Time) ([]*models.RefreshSession, error) {
	var out []*models.RefreshSession
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsValid(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRefreshRepo) CountActive(ctx context.Context, userID int64, now time.Time) (int64, error) {
	list, _ := f.ListActive(ctx, userID, now)
	return int64(len(list)), nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for token, s := range f.sessions {
		if s.IsExpired(now) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

type fakeResetsRepo struct {
	nextID int64
	resets []*models.PasswordReset
}

func (f *fakeResetsRepo) Create(ctx context.Context, r *models.PasswordReset) (*models.PasswordReset, error) {
	f.nextID++
	r.ID = f.nextID
	r.CreatedAt = time.Now()
	f.resets = append(f.resets, r)
	return r, nil
}

func (f *fakeResetsRepo) ListByUser(ctx context.Context, userID int64) ([]*models.PasswordReset, error) {
	var out []*models.PasswordReset
	for _, r := range f.resets {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	users  *fakeUsersRepo
	roles  *fakeRolesRepo
	tokens *fakeRefreshRepo
	resets *fakeResetsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	defaults := models.DefaultRolePermissions()
	roles := &fakeRolesRepo{roles: map[int64]*models.Role{
		1: {ID: 1, Name: "Administrador", IsActive: true, Permissions: defaults["Administrador"]},
		3: {ID: 3, Name: "Cajero", IsActive: true, Permissions: defaults["Cajero"]},
	}}
	return &fakeRepoManager{
		// Start fake user IDs well above the actor IDs the tests pass in
		// (1, 99, ...) so a seeded user never collides with an actor.
		users:  &fakeUsersRepo{nextID: 100, users: map[int64]*models.User{}, roles: roles},
		roles:  roles,
		tokens: &fakeRefreshRepo{sessions: map[string]*models.RefreshSession{}},
		resets: &fakeResetsRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.users }
func (m *fakeRepoManager) Roles(db dbx.DBTX) rolesrepo.Repository      { return m.roles }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.tokens
}
func (m *fakeRepoManager) PasswordResets(db dbx.DBTX) passwordresetsrepo.Repository {
	return m.resets
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.JWTSecret = "access-secret"
	cfg.JWTRefreshSecret = "refresh-secret"
	return cfg
}

func seedUser(rm *fakeRepoManager, username, password string, roleID int64) *models.User {
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "bcrypt:" + password,
		RoleID:       roleID,
		IsActive:     true,
	}
	created, _ := rm.users.Create(context.Background(), u)
	return created
}

func sessionFor(userID int64) *models.RefreshSession {
	return &models.RefreshSession{
		Token:     "tok",
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func listFilter(search string) usersrepo.Filter {
	return usersrepo.Filter{Search: search, Page: 1, Limit: 10}
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
