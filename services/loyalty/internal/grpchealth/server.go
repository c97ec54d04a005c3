package grpchealth

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultInterval = 15 * time.Second

// CheckFunc reports whether a dependency of the service is usable.
type CheckFunc func(ctx context.Context) error

// Server exposes the standard gRPC health service. The status of the named
// service follows the result of check, polled every interval.
type Server struct {
	service  string
	check    CheckFunc
	interval time.Duration
	health   *health.Server
	logger   apt.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewServer(service string, check CheckFunc, interval time.Duration, logger apt.Logger) *Server {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Server{
		service:  service,
		check:    check,
		interval: interval,
		health:   health.NewServer(),
		logger:   logger,
	}
}

// RegisterGRPCService registers the health service with the gRPC server.
func (s *Server) RegisterGRPCService(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, s.health)
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	s.probe(ctx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	s.health.Shutdown()
	return nil
}

// Status returns the current status of the named service.
func (s *Server) Status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: s.service})
	if err != nil {
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
	return resp.GetStatus()
}

func (s *Server) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Server) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.check(checkCtx)
		cancel()
		if err != nil {
			s.logger.Info("health check failed", "service", s.service, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if prev := s.Status(ctx); prev != status {
		s.logger.Info("health status changed", "service", s.service, "from", prev.String(), "to", status.String())
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}
