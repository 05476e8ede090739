package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slotserve/theaterbook/internal/blobcache"
	"github.com/slotserve/theaterbook/internal/config"
	"github.com/slotserve/theaterbook/internal/postgres"
	redisx "github.com/slotserve/theaterbook/internal/redis"
	postgresrepo "github.com/slotserve/theaterbook/internal/repository/postgres"
	redisrepo "github.com/slotserve/theaterbook/internal/repository/redis"
	"github.com/slotserve/theaterbook/internal/service"
	"github.com/slotserve/theaterbook/internal/service/lifecycle"
	"github.com/slotserve/theaterbook/internal/service/stats"
	httpgin "github.com/slotserve/theaterbook/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	mirror, err := blobcache.New(cfg.Mirror.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob mirror: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	counters := redisrepo.NewCounterStore(rdb)
	cache := redisrepo.NewCache(rdb)
	pubsub := redisx.NewArchivePubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "cancel", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize services
	services := service.NewServices(store, counters, cache, mirror, pubsub, logger, service.Config{
		Lifecycle: lifecycle.Config{
			SweepConcurrency: cfg.Sweep.Concurrency,
		},
		Stats: stats.Config{},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, limiter, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Periodic expiry sweep (disabled when no interval is configured)
	if a.cfg.Sweep.Interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(a.cfg.Sweep.Interval)
			defer ticker.Stop()

			a.logger.Info("expiry sweeper running", "interval", a.cfg.Sweep.Interval)

			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					report, err := a.services.Lifecycle.SweepExpired(gCtx, time.Now())
					if err != nil {
						a.logger.Error("sweep pass failed", "error", err)
						continue
					}
					if report.Scanned > 0 || report.Resumed > 0 {
						a.logger.Info("sweep pass done",
							"scanned", report.Scanned,
							"finalized", report.Finalized,
							"resumed", report.Resumed,
							"skipped", report.Skipped,
							"conflicts", report.Conflicts,
							"failed", report.Failed,
						)
					}
				}
			}
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
