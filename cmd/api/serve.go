package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/opsdesk/internal/api/http"
	"github.com/spec-kit/opsdesk/internal/api/http/handlers"
	"github.com/spec-kit/opsdesk/internal/auth"
	"github.com/spec-kit/opsdesk/internal/config"
	"github.com/spec-kit/opsdesk/internal/events"
	"github.com/spec-kit/opsdesk/internal/lifecycle"
	"github.com/spec-kit/opsdesk/internal/observability"
	"github.com/spec-kit/opsdesk/internal/persistence"
	"github.com/spec-kit/opsdesk/internal/repository"
	"github.com/spec-kit/opsdesk/internal/service"
	"github.com/spec-kit/opsdesk/internal/worker"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	deps := map[string]handlers.Pinger{}
	if redis.Enabled() {
		deps["redis"] = redis
	}

	tickets, closeStore, err := openTicketStore(ctx, cfg, redis, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	deps["store"] = tickets

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(dispatcher, redis, cfg.Notification.EventsChannel, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: tickets,
		Gate:       lifecycle.Gate{ClosedIsTerminal: cfg.Lifecycle.ClosedIsTerminal},
		Engine:     lifecycle.NewEngine(),
		Cache:      service.NewTicketCache(cfg.Cache.Size, cfg.Cache.TTL(), metrics),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	if cfg.Cache.Size > 0 {
		if cfg.Store.Shared() && !redis.Enabled() {
			logger.Warn("ticket cache on a shared store without redis; other replicas' writes stay invisible until entries expire",
				zap.Duration("ttl", cfg.Cache.TTL()),
			)
		}
		worker.StartCacheInvalidation(ctx, redis, cfg.Notification.EventsChannel, ticketService.EvictCached, logger)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Tickets:         handlers.NewTicketsHandler(ticketService),
		ActorMiddleware: auth.NewActorMiddleware(tokens, cfg.Auth.RequireToken),
		Metrics:         metrics.Handler(),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("store", cfg.Store.Backend),
		)
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case <-waitForShutdown(logger):
	case <-ctx.Done():
	}

	return app.ShutdownWithTimeout(10 * time.Second)
}

// openTicketStore builds the configured ticket repository and a func releasing its resources.
func openTicketStore(ctx context.Context, cfg *config.Config, redis *persistence.Redis, logger *zap.Logger) (repository.TicketRepository, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
		}
		return repository.NewPostgresTicketRepository(pg.PoolHandle()), pg.Close, nil
	case config.StoreRedis:
		if !redis.Enabled() {
			return nil, nil, fmt.Errorf("redis store selected but REDIS_ADDR is empty")
		}
		return repository.NewRedisTicketRepository(redis.Client, cfg.Redis.KeyPrefix), func() {}, nil
	case config.StoreSQLite:
		db, err := persistence.NewSQLite(cfg.SQLite, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteTicketRepository(db.DB), db.Close, nil
	default:
		logger.Warn("using in-memory ticket store; data is lost on restart")
		return repository.NewMemoryTicketRepository(), func() {}, nil
	}
}

func waitForShutdown(logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		close(done)
	}()
	return done
}
