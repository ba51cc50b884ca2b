package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/alert-engine/internal/api/http"
	"github.com/spec-kit/alert-engine/internal/api/http/handlers"
	"github.com/spec-kit/alert-engine/internal/auth"
	"github.com/spec-kit/alert-engine/internal/config"
	"github.com/spec-kit/alert-engine/internal/events"
	"github.com/spec-kit/alert-engine/internal/observability"
	"github.com/spec-kit/alert-engine/internal/persistence"
	"github.com/spec-kit/alert-engine/internal/repository"
	"github.com/spec-kit/alert-engine/internal/service"
	"github.com/spec-kit/alert-engine/internal/worker"
)

const runLockKey = "alert-engine:analysis:run-lock"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	var alertRepo repository.AlertRepository
	var snapshots repository.TicketSnapshotReader
	if pool := pg.PoolHandle(); pool != nil {
		alertRepo = repository.NewAlertRepository(pool)
		snapshots = repository.NewTicketSnapshotReader(pool)
	} else {
		alertRepo = repository.NewMemoryAlertRepository()
		snapshots = repository.NewMemoryTicketSnapshotReader(nil)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	runLock := persistence.NewRunLock(redis, runLockKey, 10*time.Minute)
	analysisService := service.NewAnalysisService(cfg.Analysis, service.AnalysisDependencies{
		Snapshots:  snapshots,
		Alerts:     alertRepo,
		RunLock:    runLock,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		Alerts:     alertRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	analysisWorker := worker.NewAnalysisWorker(func(ctx context.Context) error {
		_, err := analysisService.RunOnce(ctx)
		return err
	}, cfg.Analysis.Interval(), logger)
	analysisWorker.Start(ctx)
	defer analysisWorker.Stop()

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	checks := map[string]handlers.ReadinessCheck{
		"redis": redis.Ping,
	}
	if pool := pg.PoolHandle(); pool != nil {
		checks["postgres"] = pool.Ping
	}

	healthHandler := handlers.NewHealthHandler(checks)
	alertsHandler := handlers.NewAlertsHandler(lifecycleService, analysisWorker)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Alerts:         alertsHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
