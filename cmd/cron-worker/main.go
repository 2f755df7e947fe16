package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshroute/freshroute-backend/internal/containers"
	"github.com/freshroute/freshroute-backend/internal/cron"
	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/internal/picktasks"
	"github.com/freshroute/freshroute-backend/internal/shelves"
	"github.com/freshroute/freshroute-backend/pkg/config"
	"github.com/freshroute/freshroute-backend/pkg/db"
	"github.com/freshroute/freshroute-backend/pkg/logger"
	"github.com/freshroute/freshroute-backend/pkg/metrics"
	"github.com/freshroute/freshroute-backend/pkg/migrate"
	"github.com/freshroute/freshroute-backend/pkg/outbox"
	"github.com/freshroute/freshroute-backend/pkg/redis"
)

const lockKeyFormat = "fr:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	warehouseMetrics := metrics.NewWarehouseMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	shelfRepo := shelves.NewRepository(dbClient.DB())
	crowdService, err := crowd.NewService(crowd.ServiceParams{
		Repo:             crowd.NewRepository(dbClient.DB()),
		Shelves:          shelfRepo,
		Live:             shelfRepo,
		Cache:            redisClient,
		Metrics:          warehouseMetrics,
		Logger:           logg,
		DefaultThreshold: cfg.Crowd.DefaultThreshold,
		NonCrowdedLimit:  cfg.Crowd.NonCrowdedLimit,
		CacheTTL:         cfg.Crowd.ScoreCacheTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create crowd service", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	pickTaskRepo := picktasks.NewRepository(dbClient.DB())
	pickTaskService, err := picktasks.NewService(picktasks.ServiceParams{
		DB:         dbClient,
		Repo:       pickTaskRepo,
		Outbox:     outbox.NewService(outboxRepo, logg),
		Containers: containers.NewRepository(dbClient.DB()),
		Crowd:      crowdService,
		Metrics:    warehouseMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pick task service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewPickTaskExpiryJob(cron.PickTaskExpiryJobParams{
		Logger:     logg,
		Tasks:      pickTaskRepo,
		Canceler:   pickTaskService,
		PendingTTL: cfg.PickTasks.PendingTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pick task expiry job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
