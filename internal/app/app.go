package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/idempotency"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
	"github.com/vladislavdragonenkov/marketplace/internal/service/query"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/grpcapi"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/marketplace/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Run поднимает HTTP API, gRPC, метрики и фоновые воркеры и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer deps.close(logger)

	gw, err := initGateway(cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	store := deps.store

	engine := payment.NewEngine(store,
		payment.WithLogger(logger.WithField("layer", "payment")),
		payment.WithMetrics(m),
	)
	querySvc := query.NewService(store, logger.WithField("layer", "query"))

	apiServer := httpapi.NewServer(httpapi.Dependencies{
		Cart: cart.NewService(store, cart.WithLogger(logger.WithField("layer", "cart"))),
		Checkout: checkout.NewService(store, gw.client,
			checkout.WithLogger(logger.WithField("layer", "checkout")),
			checkout.WithMetrics(m),
			checkout.WithCurrency(cfg.Currency),
		),
		Verifier:    payment.NewVerifier(engine, gw.keySecret),
		Webhooks:    payment.NewWebhookHandler(engine, gw.webhookSecret),
		Orders:      querySvc,
		Idempotency: deps.idempotencyRepo,
	},
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithMetrics(m),
		httpapi.WithIdempotencyTTL(cfg.IdempotencyTTL),
	)

	grpcServer := grpcapi.NewServer(
		grpcapi.NewQueryService(querySvc, logger.WithField("layer", "grpc")),
		prometheus.DefaultRegisterer,
		logger.WithField("layer", "grpc"),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if cfg.OutboxMaxPending > 0 {
		healthHandler.RegisterChecker("outbox", outboxBacklogChecker(deps, cfg.OutboxMaxPending))
	}

	broker, err := initKafka(cfg, logger.WithField("layer", "kafka"))
	if err != nil {
		logger.WithError(err).Warn("kafka is unavailable, outbox events stay pending")
	}
	defer broker.close(logger)

	var (
		outboxCancel context.CancelFunc
		outboxDone   chan struct{}
	)
	if broker != nil {
		outboxCancel, outboxDone = startOutboxWorker(ctx, cfg, deps, broker, m, logger)
	}
	defer shutdownWorker(outboxCancel, outboxDone, logger)

	cleanupCancel, cleanupDone := startIdempotencyCleanup(ctx, cfg, deps, m, logger)
	defer shutdownWorker(cleanupCancel, cleanupDone, logger)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return fmt.Errorf("listen grpc: %w", err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		shutdownHTTP(metricsSrv, logger)
		return fmt.Errorf("listen http: %w", err)
	}

	httpSrv := &http.Server{Handler: apiServer, ReadHeaderTimeout: readHeaderTimeout}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		errCh <- grpcServer.GRPC.Serve(grpcLis)
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		grpcServer.SetNotServing()
		shutdownHTTP(httpSrv, logger)
		shutdownGRPC(grpcServer.GRPC, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		grpcServer.SetNotServing()
		shutdownHTTP(httpSrv, logger)
		shutdownGRPC(grpcServer.GRPC, logger)
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func outboxBacklogChecker(deps runtimeDependencies, maxPending int) healthcheck.Checker {
	return healthcheck.NewBacklogChecker("outbox", maxPending, func(ctx context.Context) (int, error) {
		stats, err := deps.outboxRepo.Stats(ctx)
		return stats.PendingCount, err
	})
}

func startOutboxWorker(ctx context.Context, cfg Config, deps runtimeDependencies, broker *kafkaRuntime, m *metrics.Metrics, logger *log.Entry) (context.CancelFunc, chan struct{}) {
	worker := outbox.NewWorker(deps.outboxRepo, broker.events,
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(m),
		outbox.WithDLQPublisher(broker.dlq),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	return cancel, done
}

func startIdempotencyCleanup(ctx context.Context, cfg Config, deps runtimeDependencies, m *metrics.Metrics, logger *log.Entry) (context.CancelFunc, chan struct{}) {
	worker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithMetrics(m),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	return cancel, done
}

// shutdownWorker отменяет фоновый воркер и ждёт его завершения не дольше shutdownTimeout.
func shutdownWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("background worker did not stop in time")
	}
}

// shutdownGRPC пытается остановиться gracefully и обрывает соединения по таймауту.
func shutdownGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает /metrics и health-эндпоинты.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
