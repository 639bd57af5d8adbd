package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/server/auth"
	"github.com/gestion-comercial/backend/internal/server/models"
)

type ctxKey string

// ClaimsKey carries the verified access-token claims through the context.
const ClaimsKey ctxKey = "claims"

// ClaimsFromContext returns the access claims the token interceptor stored.
func ClaimsFromContext(ctx context.Context) (*auth.AccessClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.AccessClaims)
	return claims, ok
}

// publicMethods need no access token: credential submission, token rotation
// and health checks.
var publicMethods = map[string]bool{
	"/gestioncomercial.auth.AuthService/Login":   true,
	"/gestioncomercial.auth.AuthService/Refresh": true,
	"/grpc.health.v1.Health/Check":               true,
	"/grpc.health.v1.Health/Watch":               true,
}

type requiredPermission struct {
	module models.Module
	action models.Action
}

// methodPermissions maps protected methods to the module action they need.
// Methods absent from the table only require a valid token.
var methodPermissions = map[string]requiredPermission{
	"/gestioncomercial.users.UserService/ListUsers":         {models.ModuleUsers, models.ActionView},
	"/gestioncomercial.users.UserService/GetUser":           {models.ModuleUsers, models.ActionView},
	"/gestioncomercial.users.UserService/CreateUser":        {models.ModuleUsers, models.ActionCreate},
	"/gestioncomercial.users.UserService/UpdateUser":        {models.ModuleUsers, models.ActionEdit},
	"/gestioncomercial.users.UserService/DeleteUser":        {models.ModuleUsers, models.ActionDelete},
	"/gestioncomercial.users.UserService/ResetPassword":     {models.ModuleUsers, models.ActionEdit},
	"/gestioncomercial.users.UserService/ChangeUserStatus":  {models.ModuleUsers, models.ActionEdit},
	"/gestioncomercial.users.UserService/CheckAvailability": {models.ModuleUsers, models.ActionView},
	"/gestioncomercial.users.UserService/ListRoles":         {models.ModuleUsers, models.ActionView},
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.auth.VerifyAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = context.WithValue(ctx, ClaimsKey, claims)

	return handler(ctx, req)
}

func (s *GRPCServer) permissionInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	required, ok := methodPermissions[info.FullMethod]
	if !ok {
		return handler(ctx, req)
	}

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	allowed, err := s.auth.VerifyRolePermission(ctx, claims.RoleID, required.module, required.action)
	if err != nil {
		return nil, status.Error(codes.Internal, "permission check failed")
	}
	if !allowed {
		return nil, status.Error(codes.PermissionDenied, "permission denied")
	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	start := time.Now()
	resp, err := handler(ctx, req)

	if err != nil {
		s.logger.Warn(ctx, "request failed",
			"method", info.FullMethod, "duration", time.Since(start), "error", err)
	} else {
		s.logger.Debug(ctx, "request handled",
			"method", info.FullMethod, "duration", time.Since(start))
	}
	return resp, err
}
