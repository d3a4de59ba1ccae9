package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/rentchain-properties/internal/cron"
	"github.com/angelmondragon/rentchain-properties/internal/properties"
	"github.com/angelmondragon/rentchain-properties/internal/reconcile"
	"github.com/angelmondragon/rentchain-properties/pkg/config"
	"github.com/angelmondragon/rentchain-properties/pkg/db"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/metrics"
	"github.com/angelmondragon/rentchain-properties/pkg/redis"
)

type ledgerReader interface {
	GetProperty(ctx context.Context, propertyID int64) (*ledger.Property, error)
	PropertyCount(ctx context.Context) (int64, error)
}

// app holds the lazily opened dependencies shared by every subcommand.
type app struct {
	out     io.Writer
	logg    *logger.Logger
	ledger  ledgerReader
	runJobs func(ctx context.Context, names ...string) error
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) ensureLogger(level string) {
	if a.logg == nil {
		a.logg = logger.New(logger.Options{ServiceName: "ledgerctl", Level: logger.ParseLevel(level), Format: "console"})
	}
}

// dialLedger connects the read-only commands. Already injected readers are kept.
func (a *app) dialLedger(ctx context.Context, cfg *config.Config) error {
	if a.ledger != nil {
		return nil
	}
	client, err := ledger.Dial(ctx, cfg.Ledger, nil, a.logg)
	if err != nil {
		return fmt.Errorf("dial ledger: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.ledger = client
	return nil
}

// prepareReconcile wires the reconciler behind the cron service so a manual pass honours
// the same lock as the cron worker.
func (a *app) prepareReconcile(ctx context.Context, cfg *config.Config, batch int) error {
	if a.runJobs != nil {
		return nil
	}
	if err := a.dialLedger(ctx, cfg); err != nil {
		return err
	}

	dbClient, err := db.Open(ctx, cfg, a.logg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = dbClient.Close() })

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Configured() {
		redisClient, err := redis.New(ctx, cfg.Redis, a.logg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		env := cfg.App.Env
		if env == "" {
			env = "local"
		}
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+env), cfg.Cron.LockTTL)
		if err != nil {
			return err
		}
		lock = redisLock
	}

	if batch <= 0 {
		batch = cfg.Cron.ReconcileBatch
	}
	reconciler, err := reconcile.New(reconcile.Params{
		Store:        properties.NewRepository(dbClient.DB()),
		Ledger:       a.ledger,
		Metrics:      metrics.NewReconcileMetrics(prometheus.NewRegistry()),
		Logger:       a.logg,
		BatchSize:    batch,
		PendingGrace: cfg.Cron.PendingGrace,
	})
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(reconciler)
	if err != nil {
		return err
	}
	svc, err := cron.NewService(cron.ServiceParams{Logger: a.logg, Registry: registry, Lock: lock})
	if err != nil {
		return err
	}
	a.runJobs = svc.RunNow
	return nil
}
