package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/rentchain-properties/api/routes"
	"github.com/angelmondragon/rentchain-properties/internal/events"
	"github.com/angelmondragon/rentchain-properties/internal/properties"
	"github.com/angelmondragon/rentchain-properties/internal/rooms"
	"github.com/angelmondragon/rentchain-properties/internal/search"
	"github.com/angelmondragon/rentchain-properties/pkg/config"
	"github.com/angelmondragon/rentchain-properties/pkg/db"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/metrics"
	"github.com/angelmondragon/rentchain-properties/pkg/migrate"
	"github.com/angelmondragon/rentchain-properties/pkg/pubsub"
	"github.com/angelmondragon/rentchain-properties/pkg/redis"
	"github.com/angelmondragon/rentchain-properties/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency and rate limiting disabled")
	}

	ledgerClient, err := ledger.Dial(ctx, cfg.Ledger, metrics.NewLedgerMetrics(prometheus.DefaultRegisterer), logg)
	requireResource(ctx, logg, "ledger", err)
	defer ledgerClient.Close()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)

	var publisher *events.Publisher
	if cfg.PubSub.PropertyEventsTopic != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher = events.NewPublisher(pubsubClient.PropertyEventsPublisher(), logg)
	}

	roomRepo := rooms.NewRepository(dbClient.DB())
	cascade, err := rooms.NewCascadeManager(roomRepo, gcsClient, logg)
	requireResource(ctx, logg, "cascade manager", err)

	propertyParams := properties.ServiceParams{
		Repository: properties.NewRepository(dbClient.DB()),
		Ledger:     ledgerClient,
		Rooms:      cascade,
		Logger:     logg,
	}
	if publisher != nil {
		propertyParams.Events = publisher
	}
	propertyService, err := properties.NewService(propertyParams)
	requireResource(ctx, logg, "property service", err)

	roomService, err := rooms.NewService(rooms.ServiceParams{
		Repository:     roomRepo,
		Blobs:          gcsClient,
		Cascade:        cascade,
		MaxUploadBytes: cfg.GCS.MaxUploadBytes(),
		Logger:         logg,
	})
	requireResource(ctx, logg, "room service", err)

	handler := routes.NewRouter(routes.Deps{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Storage:    gcsClient,
		Properties: propertyService,
		Search:     search.NewEngine(dbClient.DB()),
		Rooms:      roomService,
		Gatherer:   prometheus.DefaultGatherer,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"dialect": dbClient.Dialect(),
		"signer":  ledgerClient.SignerAddress(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(runCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
