package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/service-portal/internal/api/http"
	"github.com/spec-kit/service-portal/internal/api/http/handlers"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/events"
	"github.com/spec-kit/service-portal/internal/observability"
	"github.com/spec-kit/service-portal/internal/persistence"
	"github.com/spec-kit/service-portal/internal/repository"
	"github.com/spec-kit/service-portal/internal/repository/memory"
	"github.com/spec-kit/service-portal/internal/service"
	"github.com/spec-kit/service-portal/internal/storage"
)

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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store, err := storage.NewLocalStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to prepare upload storage", zap.Error(err))
	}

	deps := httptransport.ServerDependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     observability.NewMetrics("portal"),
		Sequence:    redis,
		Attachments: store,
		Dispatcher:  events.NewInMemoryDispatcher(logger),
		HealthChecks: map[string]handlers.Pinger{
			"redis": redis,
		},
	}

	if pool := pg.PoolHandle(); pool != nil {
		timeline := repository.NewTimelineRepository(pool)
		deps.Users = repository.NewUserRepository(pool)
		deps.Outlets = repository.NewOutletRepository(pool)
		deps.Entities = repository.NewEntityRepository(pool, timeline)
		deps.HealthChecks["postgres"] = pg
	} else {
		logger.Warn("running with in-memory repositories; data is lost on restart")
		mem := memory.NewStore()
		deps.Users = mem.Users()
		deps.Outlets = mem.Outlets()
		deps.Entities = mem.Entities()
	}

	notifications := service.NewNotificationService(deps.Dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	server := httptransport.NewServer(deps)

	if _, err := server.Auth.EnsureAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin account", zap.Error(err))
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := server.App.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.App.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
