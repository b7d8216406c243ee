package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkopo/loanbook/internal/application/usecase"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/service"
	"github.com/mkopo/loanbook/internal/infrastructure/config"
	"github.com/mkopo/loanbook/internal/infrastructure/idempotency"
	"github.com/mkopo/loanbook/internal/infrastructure/messaging"
	"github.com/mkopo/loanbook/internal/infrastructure/persistence/memory"
	pgRepo "github.com/mkopo/loanbook/internal/infrastructure/persistence/postgres"
	"github.com/mkopo/loanbook/internal/infrastructure/telemetry"
	grpcPresentation "github.com/mkopo/loanbook/internal/presentation/grpc"
	"github.com/mkopo/loanbook/internal/presentation/rest"
	"github.com/mkopo/loanbook/pkg/auth"
	pkgkafka "github.com/mkopo/loanbook/pkg/kafka"
	"github.com/mkopo/loanbook/pkg/observability"
	pkgpostgres "github.com/mkopo/loanbook/pkg/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("loanbook exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})
	logger.Info("starting loanbook",
		"version", cfg.ServiceVersion,
		"store", cfg.Store,
		"grpc_port", cfg.GRPCPort,
		"http_port", cfg.HTTPPort,
	)

	// Tracing and metrics.
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }() //nolint:errcheck // best-effort flush
	}

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }() //nolint:errcheck // best-effort flush

	engineMetrics, err := telemetry.NewEngineMetrics(meterProvider.Meter("github.com/mkopo/loanbook"))
	if err != nil {
		return fmt.Errorf("init engine metrics: %w", err)
	}

	readiness := map[string]rest.Pinger{}

	// Storage.
	var (
		uow   port.UnitOfWork
		repos port.Repositories
	)
	switch cfg.Store {
	case config.StorePostgres:
		dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := pkgpostgres.NewPool(dbCtx, pkgpostgres.Config{
			Host:        cfg.DB.Host,
			Port:        cfg.DB.Port,
			User:        cfg.DB.User,
			Password:    cfg.DB.Password,
			Database:    cfg.DB.Name,
			SSLMode:     cfg.DB.SSLMode,
			MaxConns:    cfg.DB.MaxConns,
			LockTimeout: cfg.DB.LockTimeout,
		})
		dbCancel()
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

		if err := pkgpostgres.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		uow = pgRepo.NewUnitOfWork(pool)
		repos = pgRepo.NewRepositories(pool)
		readiness["postgres"] = pkgpostgres.Checker{DB: pool}
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		uow = store
		repos = store.Repositories()
	}

	// Idempotency.
	var idem port.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisStore, err := idempotency.NewRedisStore(ctx, idempotency.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() { _ = redisStore.Close() }() //nolint:errcheck // shutdown
		idem = redisStore
		readiness["redis"] = redisStore
	} else {
		memStore := idempotency.NewMemoryStore(time.Minute)
		defer func() { _ = memStore.Close() }() //nolint:errcheck // shutdown
		idem = memStore
		logger.Warn("REDIS_ADDR not set, payment de-duplication is per process")
	}

	// Use cases.
	engine := service.NewAllocationEngine()
	allocateUC := usecase.NewAllocatePaymentUseCase(uow, engine, engineMetrics, logger)
	reverseUC := usecase.NewReversePaymentUseCase(uow, engine, engineMetrics, logger)
	recordUC := usecase.NewRecordPaymentUseCase(uow, allocateUC, idem, cfg.IdempotencyTTL, engineMetrics, logger)
	useCases := grpcPresentation.UseCases{
		Originate:   usecase.NewOriginateLoanUseCase(uow, logger),
		GetSchedule: usecase.NewGetLoanScheduleUseCase(repos.Loans, repos.Schedules, repos.Transactions),
		Record:      recordUC,
		Revert:      usecase.NewRevertPaymentUseCase(uow, repos.Transactions, reverseUC, logger),
		Allocate:    allocateUC,
		Reverse:     reverseUC,
		GetWallet:   usecase.NewGetWalletUseCase(repos.Wallets),
	}

	// Kafka: outbox relay out, M-Pesa confirmations in.
	kafkaCfg := pkgkafka.Config{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		TLS:           cfg.Kafka.TLS,
		SASLEnabled:   cfg.Kafka.SASLEnabled,
		SASLMechanism: cfg.Kafka.SASLMechanism,
		SASLUsername:  cfg.Kafka.SASLUsername,
		SASLPassword:  cfg.Kafka.SASLPassword,
	}
	if err := kafkaCfg.Validate(); err != nil {
		return fmt.Errorf("invalid kafka configuration: %w", err)
	}
	producer := pkgkafka.NewProducer(kafkaCfg)
	defer func() { _ = producer.Close() }() //nolint:errcheck // shutdown

	relay := messaging.NewOutboxRelay(uow,
		messaging.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic),
		messaging.RelayConfig{BatchSize: cfg.OutboxBatch, PollInterval: cfg.OutboxInterval},
		logger,
	)
	relay.Start(ctx)

	errCh := make(chan error, 3)

	if cfg.Kafka.MpesaTopic != "" {
		mpesa := messaging.NewMpesaHandler(recordUC, logger)
		consumer := pkgkafka.NewConsumer(kafkaCfg, cfg.Kafka.MpesaTopic, mpesa.Handle, logger)
		defer func() { _ = consumer.Close() }() //nolint:errcheck // shutdown
		go func() {
			if err := consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("mpesa consumer: %w", err)
			}
		}()
	}

	// JWT validation.
	var jwtSvc *auth.JWTService
	if cfg.Auth.Enabled {
		keyData, err := auth.LoadKeyFromFile(cfg.Auth.PublicKeyPath)
		if err != nil {
			return fmt.Errorf("load JWT public key: %w", err)
		}
		jwtSvc, err = auth.NewJWTService(auth.JWTConfig{PublicKeyPEM: string(keyData), Issuer: cfg.Auth.Issuer})
		if err != nil {
			return fmt.Errorf("init JWT service: %w", err)
		}
	}

	// gRPC server.
	serverCfg := grpcPresentation.ServerConfig{JWT: jwtSvc, Reflection: cfg.GRPCReflection}
	if cfg.TLS.Enabled {
		serverCfg.TLSCertFile, serverCfg.TLSKeyFile = cfg.TLS.CertFile, cfg.TLS.KeyFile
	}
	grpcServer, err := grpcPresentation.NewServer(grpcPresentation.NewLoanbookHandler(useCases, logger), serverCfg, logger)
	if err != nil {
		return fmt.Errorf("create gRPC server: %w", err)
	}

	// HTTP server (health checks, metrics).
	mux := http.NewServeMux()
	rest.NewHealthHandler(cfg.ServiceName, readiness, metricsHandler, logger).RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server error", "error", runErr)
	}

	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := relay.Stop(shutdownCtx); err != nil {
		logger.Error("outbox relay shutdown error", "error", err)
	}

	logger.Info("loanbook stopped")
	return runErr
}
