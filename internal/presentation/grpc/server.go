package grpc

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/mkopo/loanbook/pkg/auth"
	"github.com/mkopo/loanbook/pkg/tlsutil"
)

// ServerConfig controls transport security and the auth chain.
type ServerConfig struct {
	// JWT enables bearer-token authentication when non-nil.
	JWT         *auth.JWTService
	TLSCertFile string
	TLSKeyFile  string
	Reflection  bool
}

// privilegedMethods may only be called by staff who can undo money movements.
var privilegedMethods = map[string][]string{
	MethodRevertPayment:  {auth.RoleAdmin, auth.RoleLoanOfficer},
	MethodReversePayment: {auth.RoleAdmin, auth.RoleLoanOfficer},
	MethodOriginateLoan:  {auth.RoleAdmin, auth.RoleLoanOfficer},
}

// Server wraps a gRPC server with the loanbook handler registered.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer creates and configures the gRPC server.
func NewServer(handler LoanbookServiceServer, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	var opts []grpc.ServerOption

	if cfg.JWT != nil {
		opts = append(opts, grpc.ChainUnaryInterceptor(
			auth.UnaryAuthInterceptor(cfg.JWT, []string{
				"/grpc.health.v1.Health/Check",
				"/grpc.health.v1.Health/Watch",
			}),
			auth.RequireRoleFor(privilegedMethods),
		))
	} else {
		logger.Warn("gRPC authentication disabled")
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := tlsutil.ServerTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
		logger.Info("gRPC TLS enabled", "cert", cfg.TLSCertFile)
	}

	gs := grpc.NewServer(opts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if cfg.Reflection {
		reflection.Register(gs)
	}

	RegisterLoanbookServiceServer(gs, handler)

	return &Server{gs: gs, health: healthSrv, logger: logger}, nil
}

// Serve listens on addr and blocks until the server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.logger.Info("gRPC server listening", "addr", addr)
	return s.gs.Serve(lis)
}

// GracefulStop marks the service as not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()
	s.gs.GracefulStop()
}
