package grpcapi

import (
	"errors"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server: gRPC-сервер с сервисом запросов, health и reflection.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
}

// ServerOption настраивает Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	sessions SessionResolver
}

// WithSessionResolver заменяет MetadataSessionResolver.
func WithSessionResolver(resolver SessionResolver) ServerOption {
	return func(o *serverOptions) {
		if resolver != nil {
			o.sessions = resolver
		}
	}
}

// NewServer собирает сервер. Метрики promgrpc регистрируются в registerer
// (nil: prometheus.DefaultRegisterer), повторная регистрация переиспользует коллектор.
// Методы OrderQueryService требуют сессию из metadata.
func NewServer(query OrderQueryServer, registerer prometheus.Registerer, logger *log.Entry, opts ...ServerOption) *Server {
	options := serverOptions{sessions: MetadataSessionResolver{}}
	for _, opt := range opts {
		opt(&options)
	}
	if logger == nil {
		logger = log.WithField("component", "grpc-server")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := registerer.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		SessionInterceptor(options.sessions),
	))
	Register(srv, query)
	grpcMetrics.InitializeMetrics(srv)

	// reflection для grpcurl
	reflection.Register(srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	return &Server{GRPC: srv, Health: healthServer}
}

// SetNotServing переводит health в NOT_SERVING перед остановкой.
func (s *Server) SetNotServing() {
	s.Health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}
