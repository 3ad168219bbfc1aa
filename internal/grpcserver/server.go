// Package grpcserver exposes the standard gRPC health service. Status
// follows a periodic ping of the database.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"movierec/pkg/logger"
)

// ServiceName is registered next to the overall ("") status.
const ServiceName = "movierec.Catalog"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	Addr         string
	DB           Pinger
	PingInterval time.Duration

	health *health.Server
	log    *logger.Logger
}

func NewServer(addr string, db Pinger, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		Addr:         addr,
		DB:           db,
		PingInterval: 10 * time.Second,
		health:       health.NewServer(),
		log:          log.With("component", "GRPCHealth"),
	}
}

func (s *Server) String() string { return "grpc-health" }

// Serve listens on Addr until ctx ends. It implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.Addr, err)
	}
	return s.serve(ctx, lis)
}

func (s *Server) serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	s.ping(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gRPC health listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			srv.GracefulStop()
			return ctx.Err()
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("grpc serve: %w", err)
		case <-ticker.C:
			s.ping(ctx)
		}
	}
}

func (s *Server) ping(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.DB.PingContext(pctx); err != nil {
		s.log.Warn("database ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
