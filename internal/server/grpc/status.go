package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gestion-comercial/backend/internal/common"
)

// StatusFromError translates domain sentinel errors into gRPC status errors
// for handlers registered on this server. Unknown errors become Internal so
// no detail leaks to the client.
func StatusFromError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenInvalid):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrAccountLocked),
		errors.Is(err, common.ErrAccountInactive),
		errors.Is(err, common.ErrSelfDelete),
		errors.Is(err, common.ErrSelfDeactivate),
		errors.Is(err, common.ErrInvalidCurrentPassword):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrUserNotFound),
		errors.Is(err, common.ErrRoleNotFound),
		errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrUsernameTaken),
		errors.Is(err, common.ErrEmailTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
