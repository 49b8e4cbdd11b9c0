// Package grpcserver exposes the standard gRPC health service for the booking service.
// The serving status follows the same checks as the HTTP /readyz endpoint.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/grpcx"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the empty (whole server) service name.
const ServiceName = "apptbook.booking.v1.BookingService"

const defaultProbeInterval = 5 * time.Second

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	logger   *slog.Logger
	checks   []runtime.ReadyCheck
	interval time.Duration
}

func New(logger *slog.Logger, interval time.Duration, checks ...runtime.ReadyCheck) *Server {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	s := &Server{
		grpc:     grpcx.NewServer(logger),
		health:   health.NewServer(),
		logger:   logger,
		checks:   checks,
		interval: interval,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Probe runs the checks once and updates the reported status.
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	failures := runtime.CheckAll(ctx, s.checks...)
	st := healthpb.HealthCheckResponse_SERVING
	if len(failures) > 0 {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("grpc health degraded", "failures", failures)
	}
	s.setStatus(st)
	return st
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve blocks until ctx is done or the listener fails. On cancellation all watchers are
// told the server is going away and in-flight calls are drained.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Probe(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()
	s.logger.Info("grpc server starting", "addr", lis.Addr().String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			<-errCh
			s.logger.Info("grpc server stopped")
			return nil
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}
