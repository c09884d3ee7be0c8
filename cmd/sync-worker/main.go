package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianfin/ledgermirror/internal/accounts"
	"github.com/meridianfin/ledgermirror/internal/balances"
	"github.com/meridianfin/ledgermirror/internal/journal"
	"github.com/meridianfin/ledgermirror/internal/primaryledger"
	syncpkg "github.com/meridianfin/ledgermirror/internal/sync"
	"github.com/meridianfin/ledgermirror/pkg/config"
	"github.com/meridianfin/ledgermirror/pkg/db"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/metrics"
	"github.com/meridianfin/ledgermirror/pkg/migrate"
	"github.com/meridianfin/ledgermirror/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
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

	accountsRepo := accounts.NewRepository(dbClient.DB())
	balancesRepo := balances.NewRepository(dbClient.DB())
	cursors := syncpkg.NewCursorRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	journalService, err := journal.NewService(journal.ServiceParams{
		Repo:     journal.NewRepository(dbClient.DB()),
		Accounts: accountsRepo,
		Balances: balancesRepo,
		Cursors:  cursors,
		Outbox:   outboxService,
		TxRunner: dbClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create journal service", err)
		os.Exit(1)
	}

	streams, err := primaryledger.NewStreamFactory(cfg.PrimaryLedger)
	if err != nil {
		logg.Error(context.Background(), "failed to create transfer stream factory", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(promRegistry)

	service, err := syncpkg.NewService(syncpkg.ServiceParams{
		Config:  cfg.Sync,
		Journal: journalService,
		Cursors: cursors,
		Streams: streams,
		Metrics: syncMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "sync-worker",
		"partitions":  cfg.Sync.Partitions,
	})
	logg.Info(ctx, "starting sync worker")

	go serveMetrics(ctx, cfg.App.Port, promRegistry, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, port string, registry *prometheus.Registry, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
