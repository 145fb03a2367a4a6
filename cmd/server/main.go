package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/akriventsev/vouchers/internal/application"
	"github.com/akriventsev/vouchers/internal/config"
	"github.com/akriventsev/vouchers/internal/domain"
	"github.com/akriventsev/vouchers/internal/eventhandling"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/eventsourcing"
	"github.com/akriventsev/vouchers/internal/migrations"
	"github.com/akriventsev/vouchers/internal/notification"
	"github.com/akriventsev/vouchers/internal/observability"
	"github.com/akriventsev/vouchers/internal/readmodel"
	"github.com/akriventsev/vouchers/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Метрики и tracing
	meterProvider, err := observability.SetupMetrics(cfg.Observability.ServiceName)
	if err != nil {
		logger.Fatal("Failed to setup metrics", zap.Error(err))
	}
	defer observability.ShutdownMetrics(context.Background(), meterProvider) //nolint:errcheck

	metrics, err := observability.NewMetrics()
	if err != nil {
		logger.Fatal("Failed to create metrics", zap.Error(err))
	}

	tracerProvider, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:      cfg.Observability.TraceEnabled,
		ServiceName:  cfg.Observability.ServiceName,
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to setup tracing", zap.Error(err))
	}
	defer observability.ShutdownTracing(context.Background(), tracerProvider) //nolint:errcheck

	// Миграции схемы
	if cfg.EventStore.RunMigrations && cfg.EventStore.PostgresDSN != "" {
		if err := migrations.RunMigrations(cfg.EventStore.PostgresDSN, "migrations"); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Журнал событий
	deserializer := domain.NewEventDeserializer()
	eventStore, err := eventsourcing.NewEventStore(ctx, cfg.EventStoreFactoryConfig(), deserializer)
	if err != nil {
		logger.Fatal("Failed to create event store", zap.Error(err))
	}

	// Read-модель
	var readStore readmodel.Store
	var checkpoints eventsourcing.CheckpointStore
	switch cfg.ReadModel.Type {
	case "postgres":
		readStore, err = readmodel.NewPostgresStore(ctx, cfg.ReadModelStoreConfig())
		if err != nil {
			logger.Fatal("Failed to create read model store", zap.Error(err))
		}
		checkpoints, err = eventsourcing.NewPostgresCheckpointStore(ctx, cfg.ReadModel.PostgresDSN)
		if err != nil {
			logger.Fatal("Failed to create checkpoint store", zap.Error(err))
		}
	default:
		readStore = readmodel.NewInMemoryStore()
		checkpoints = eventsourcing.NewInMemoryCheckpointStore()
	}

	projector := readmodel.NewProjector(readStore, logger)
	if err := projector.CatchUp(ctx, eventStore, checkpoints); err != nil {
		logger.Fatal("Failed to catch up projection", zap.Error(err))
	}

	// Шина событий и внешний публикатор
	bus := events.NewInMemoryBus(events.DefaultRetryConfig(), logger)
	if err := projector.Register(bus); err != nil {
		logger.Fatal("Failed to register projector", zap.Error(err))
	}

	external, err := events.NewPublisher(cfg.PublisherFactoryConfig())
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}

	// Командная сторона
	repository := eventsourcing.NewRepository(eventStore,
		domain.NewVoucherFactory(cfg.Vouchers.CodeLength, cfg.Vouchers.ExpiryDays))
	queries := readmodel.NewQueryManager(readStore)
	service := application.NewVoucherService(repository, queries, bus, external, metrics, logger)

	// Конвейер нотификаций
	notificationHandler := eventhandling.NewVoucherDomainEventHandler(
		repository,
		queries,
		notification.NewTemplateRenderer(),
		notification.NewTokenProvider(cfg.TokenProviderConfig()),
		notification.NewGateway(cfg.GatewayConfig()),
		eventhandling.TemplateConfig{
			EmailTemplatePath: cfg.Notifications.EmailTemplatePath,
			SMSTemplatePath:   cfg.Notifications.SMSTemplatePath,
			EmailSubject:      cfg.Notifications.EmailSubject,
		},
		logger,
	)
	if err := eventhandling.NewRegistry(notificationHandler).Bind(bus); err != nil {
		logger.Fatal("Failed to bind event handlers", zap.Error(err))
	}

	// HTTP-сервер
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      transport.NewServer(service, queries, logger).Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("Shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
		if err := bus.Shutdown(shutdownCtx); err != nil {
			logger.Error("Event bus shutdown error", zap.Error(err))
		}
		cancel()
	}()

	logger.Info("Server starting", zap.String("addr", cfg.HTTP.Addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// newLogger создает production-логгер с заданным уровнем
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
