package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/meridianfin/ledgermirror/internal/accounts"
	"github.com/meridianfin/ledgermirror/internal/balances"
	"github.com/meridianfin/ledgermirror/internal/cron"
	"github.com/meridianfin/ledgermirror/internal/drift"
	"github.com/meridianfin/ledgermirror/internal/journal"
	"github.com/meridianfin/ledgermirror/internal/primaryledger"
	"github.com/meridianfin/ledgermirror/internal/reconciliation"
	"github.com/meridianfin/ledgermirror/pkg/config"
	"github.com/meridianfin/ledgermirror/pkg/db"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/metrics"
	"github.com/meridianfin/ledgermirror/pkg/migrate"
	"github.com/meridianfin/ledgermirror/pkg/outbox/idempotency"
	"github.com/meridianfin/ledgermirror/pkg/pubsub"
	"github.com/meridianfin/ledgermirror/pkg/redis"
)

const lockKeyName = "recon-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "recon-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "recon-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	journalRepo := journal.NewRepository(dbClient.DB())
	reconciliationService, err := reconciliation.NewService(
		reconciliation.NewRepository(dbClient.DB()),
		journalRepo,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Reconciliation.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := reconciliation.NewConsumer(
		reconciliationService,
		pubsubClient.JournalSubscription(),
		idempotencyManager,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation consumer", err)
		os.Exit(1)
	}

	cronService, err := buildCron(cfg, logg, dbClient, redisClient, reconciliationService)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "recon-worker",
	})
	logg.Info(ctx, "starting reconciliation worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return consumer.Run(groupCtx)
	})
	group.Go(func() error {
		return cronService.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconciliation worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconciliation worker shutting down gracefully")
}

func buildCron(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	reconciliationService reconciliation.Service,
) (*cron.Service, error) {
	retryJob, err := reconciliation.NewRetryJob(reconciliationService, cfg.Reconciliation.RetryBatchSize, logg)
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry(retryJob)

	if cfg.PrimaryLedger.BaseURL != "" {
		primaryClient, err := primaryledger.NewClient(cfg.PrimaryLedger, logg)
		if err != nil {
			return nil, err
		}

		accountsRepo := accounts.NewRepository(dbClient.DB())
		accountsService, err := accounts.NewService(accountsRepo, accounts.NewCache(redisClient, 0))
		if err != nil {
			return nil, err
		}
		balancesService, err := balances.NewService(balances.NewRepository(dbClient.DB()), accountsService, dbClient)
		if err != nil {
			return nil, err
		}

		driftJob, err := drift.NewJob(
			accountsRepo,
			balancesService,
			primaryClient,
			metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
			logg,
			cfg.Drift.SampleSize,
		)
		if err != nil {
			return nil, err
		}
		registry.Register(driftJob)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKeyName), cfg.Reconciliation.CronLockTTL)
	if err != nil {
		return nil, fmt.Errorf("create cron lock: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconciliation.CronInterval,
	})
}
