package grpc

import (
	"context"
	"log/slog"
	"net"

	"github.com/simaogato/wealthflow-core/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Health service names reported by the server
const (
	QuotesService = "wealthflow.quotes"
	RatesService  = "wealthflow.rates"
)

// Server hosts the health, reflection and control services behind the auth interceptors
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	logger *slog.Logger
	feed   *eventFeed
}

// NewServer creates a new gRPC server instance with every component reported as serving
func NewServer(validToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(AuthInterceptor(validToken)),
		grpc.ChainStreamInterceptor(StreamAuthInterceptor(validToken)),
	)
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)

	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(QuotesService, healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(RatesService, healthpb.HealthCheckResponse_SERVING)

	return &Server{GRPC: s, Health: h, logger: logger, feed: newEventFeed()}
}

// RegisterControl exposes the token-protected control service. Call it before Serve.
func (s *Server) RegisterControl(control *Control) {
	control.events = s.feed
	s.GRPC.RegisterService(&controlServiceDesc, control)
}

// HandleEvent mirrors core events into health statuses and forwards them to event streams.
// A degraded quote provider never recovers within the process, so neither does its status.
func (s *Server) HandleEvent(_ context.Context, event domain.Event) error {
	if dropped := s.feed.publish(event); dropped > 0 {
		s.logger.Debug("event stream clients fell behind", "type", event.Type, "dropped", dropped)
	}

	switch event.Type {
	case domain.EventProviderDegraded:
		s.logger.Warn("reporting quote provider as not serving")
		s.Health.SetServingStatus(QuotesService, healthpb.HealthCheckResponse_NOT_SERVING)
	case domain.EventRatesFallback:
		s.SetRatesServing(false)
	case domain.EventRatesRestored:
		s.SetRatesServing(true)
	}
	return nil
}

// SetRatesServing reports whether live exchange rates are being served (false while on fallback tables)
func (s *Server) SetRatesServing(serving bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !serving {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.Health.SetServingStatus(RatesService, st)
}

// Serve blocks serving lis until GracefulStop
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "address", lis.Addr().String())
	return s.GRPC.Serve(lis)
}

// GracefulStop marks everything not serving, ends event streams and waits for in-flight calls
func (s *Server) GracefulStop() {
	s.Health.Shutdown()
	s.feed.stop()
	s.GRPC.GracefulStop()
}
