package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/rentchain-properties/internal/media/consumer"
	"github.com/angelmondragon/rentchain-properties/internal/rooms"
	"github.com/angelmondragon/rentchain-properties/pkg/config"
	"github.com/angelmondragon/rentchain-properties/pkg/db"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "media-deleted-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "media-deleted-worker"

	logg = logger.New(logger.Options{
		ServiceName: "media-deleted-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if cfg.PubSub.BlobDeletionSubscription == "" {
		requireResource(ctx, logg, "pubsub subscription", errors.New("RENTCHAIN_PUBSUB_BLOB_DELETION_SUBSCRIPTION is required"))
	}

	dbClient, err := db.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	deletionConsumer, err := consumer.NewDeletionConsumer(
		rooms.NewRepository(dbClient.DB()),
		pubsubClient.BlobDeletionSubscription(),
		logg,
	)
	requireResource(ctx, logg, "blob deletion consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind":  cfg.Service.Kind,
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.BlobDeletionSubscription,
	})
	logg.Info(runCtx, "media deleted worker ready")

	if err := deletionConsumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "media deleted worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
