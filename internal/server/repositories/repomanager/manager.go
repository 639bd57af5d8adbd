package repomanager

import (
	"context"
	"database/sql"

	"github.com/gestion-comercial/backend/internal/dbx"
	"github.com/gestion-comercial/backend/internal/server/repositories/passwordresets"
	"github.com/gestion-comercial/backend/internal/server/repositories/refreshtokens"
	"github.com/gestion-comercial/backend/internal/server/repositories/roles"
	"github.com/gestion-comercial/backend/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, which lets services
// run several repository calls inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Roles(db dbx.DBTX) roles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
}
