package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshroute/freshroute-backend/api/routes"
	"github.com/freshroute/freshroute-backend/internal/containers"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	warehouseMetrics := metrics.NewWarehouseMetrics(registry)

	shelfRepo := shelves.NewRepository(dbClient.DB())
	crowdRepo := crowd.NewRepository(dbClient.DB())

	crowdService, err := crowd.NewService(crowd.ServiceParams{
		Repo:             crowdRepo,
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

	locator, err := shelves.NewLocator(crowdService, shelfRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create slot locator", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	containerService, err := containers.NewService(containers.ServiceParams{
		DB:      dbClient,
		Repo:    containers.NewRepository(dbClient.DB()),
		Outbox:  outboxService,
		Crowd:   crowdService,
		Locator: locator,
		Shelves: shelfRepo,
		Metrics: warehouseMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create container service", err)
		os.Exit(1)
	}

	pickTaskService, err := picktasks.NewService(picktasks.ServiceParams{
		DB:         dbClient,
		Repo:       picktasks.NewRepository(dbClient.DB()),
		Outbox:     outboxService,
		Containers: containers.NewRepository(dbClient.DB()),
		Crowd:      crowdService,
		Metrics:    warehouseMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pick task service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Shelves:        shelfRepo,
			Crowd:          crowdService,
			Containers:     containerService,
			PickTasks:      pickTaskService,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
