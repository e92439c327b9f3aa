package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/feastline/relay-backend/api/routes"
	"github.com/feastline/relay-backend/internal/deliveries"
	"github.com/feastline/relay-backend/internal/dispatch"
	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/internal/orders"
	"github.com/feastline/relay-backend/internal/partners"
	"github.com/feastline/relay-backend/internal/webhooklogs"
	"github.com/feastline/relay-backend/pkg/config"
	"github.com/feastline/relay-backend/pkg/db"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/metrics"
	"github.com/feastline/relay-backend/pkg/migrate"
	"github.com/feastline/relay-backend/pkg/redis"
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

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	relayMetrics := metrics.NewRelayMetrics(promRegistry)

	integrationRepo := integrations.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	deliveryRepo := deliveries.NewRepository(dbClient.DB())
	logRepo := webhooklogs.NewRepository(dbClient.DB())

	registry, err := integrations.NewRegistry(integrations.RegistryParams{
		Repo:     integrationRepo,
		Cache:    redisClient,
		CacheTTL: cfg.Dispatch.IntegrationCacheT,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create integration registry", err)
		os.Exit(1)
	}

	logService, err := webhooklogs.NewService(webhooklogs.Params{
		Repo:   logRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook log service", err)
		os.Exit(1)
	}

	partnerFactory := partners.NewFactory(partners.FactoryParams{
		Attempts:    cfg.Dispatch.PartnerAttempts,
		CallTimeout: cfg.Dispatch.PartnerTimeout,
		Metrics:     relayMetrics,
		Logger:      logg,
	})

	dispatchService, err := dispatch.NewService(dispatch.Params{
		DB:           dbClient,
		OrderRepo:    orderRepo,
		DeliveryRepo: deliveryRepo,
		Registry:     registry,
		Partners:     partnerFactory,
		Locker:       dispatch.NewRedisLocker(redisClient, cfg.Dispatch.LockTTL),
		Logs:         logService,
		Metrics:      relayMetrics,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	webhookGuard := dispatch.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL)

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
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Registry:        registry,
			IntegrationRepo: integrationRepo,
			OrderRepo:       orderRepo,
			DeliveryRepo:    deliveryRepo,
			Dispatch:        dispatchService,
			WebhookGuard:    webhookGuard,
			WebhookLogs:     logService,
			PromRegistry:    promRegistry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
