package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer exposes grpc.health.v1 for orchestrator probes. The overall
// status follows a readiness check polled in the background.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	ready  func(ctx context.Context) error
	logger *slog.Logger
}

func NewHealthServer(ready func(ctx context.Context) error, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Reflection for grpcurl
	reflection.Register(gs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{grpc: gs, health: hs, ready: ready, logger: logger}
}

// Check runs the readiness check once and publishes the result.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("health.not_ready", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	return status
}

// Serve listens on addr and refreshes readiness every interval until ctx
// is cancelled.
func (s *HealthServer) Serve(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, lis, interval)
}

func (s *HealthServer) serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s.Check(ctx)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.grpc.GracefulStop()
				return
			case <-t.C:
				s.Check(ctx)
			}
		}
	}()

	s.logger.Info("grpc.health.listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
