// Package grpc hosts the transport endpoint: a gRPC server carrying the
// health service plus the interceptor chain that authenticates access tokens
// and enforces module permissions for whatever services are registered on it.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gestion-comercial/backend/internal/logging"
	"github.com/gestion-comercial/backend/internal/server/auth"
	"github.com/gestion-comercial/backend/internal/server/models"
)

// AuthBackend is what the interceptor chain needs from the auth service.
type AuthBackend interface {
	VerifyAccessToken(tokenString string) (*auth.AccessClaims, error)
	VerifyRolePermission(ctx context.Context, roleID int64, module models.Module, action models.Action) (bool, error)
}

type GRPCServer struct {
	address string
	auth    AuthBackend
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(address string, logger logging.Logger, auth AuthBackend) (*GRPCServer, error) {
	return &GRPCServer{
		address: address,
		logger:  logger.With("module", "grpc_server"),
		auth:    auth,
		health:  health.NewServer(),
	}, nil
}

func (s *GRPCServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.loggingInterceptor,
		s.accessTokenInterceptor,
		s.permissionInterceptor,
	))

	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
