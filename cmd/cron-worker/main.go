package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/rentchain-properties/internal/cron"
	"github.com/angelmondragon/rentchain-properties/internal/properties"
	"github.com/angelmondragon/rentchain-properties/internal/reconcile"
	"github.com/angelmondragon/rentchain-properties/pkg/config"
	"github.com/angelmondragon/rentchain-properties/pkg/db"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/metrics"
	"github.com/angelmondragon/rentchain-properties/pkg/migrate"
	"github.com/angelmondragon/rentchain-properties/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Configured() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(fmt.Sprintf(lockKeyFormat, envOrLocal(cfg.App.Env))), cfg.Cron.LockTTL)
		requireResource(ctx, logg, "cron lock", err)
		lock = redisLock
	} else {
		logg.Warn(ctx, "redis not configured; using an in-process lock")
	}

	ledgerClient, err := ledger.Dial(ctx, cfg.Ledger, metrics.NewLedgerMetrics(prometheus.DefaultRegisterer), logg)
	requireResource(ctx, logg, "ledger", err)
	defer ledgerClient.Close()

	var jobs []cron.Job
	if !cfg.Cron.DisableReconcile {
		reconciler, err := reconcile.New(reconcile.Params{
			Store:        properties.NewRepository(dbClient.DB()),
			Ledger:       ledgerClient,
			Metrics:      metrics.NewReconcileMetrics(prometheus.DefaultRegisterer),
			Logger:       logg,
			BatchSize:    cfg.Cron.ReconcileBatch,
			PendingGrace: cfg.Cron.PendingGrace,
		})
		requireResource(ctx, logg, "reconciler", err)
		jobs = append(jobs, reconciler)
	}

	registry, err := cron.NewRegistry(jobs...)
	requireResource(ctx, logg, "cron registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics endpoint stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(registry.Jobs()),
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
