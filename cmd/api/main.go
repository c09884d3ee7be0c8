package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/meridianfin/ledgermirror/api/routes"
	"github.com/meridianfin/ledgermirror/internal/accounts"
	"github.com/meridianfin/ledgermirror/internal/balances"
	"github.com/meridianfin/ledgermirror/internal/journal"
	"github.com/meridianfin/ledgermirror/internal/reconciliation"
	syncpkg "github.com/meridianfin/ledgermirror/internal/sync"
	"github.com/meridianfin/ledgermirror/pkg/config"
	"github.com/meridianfin/ledgermirror/pkg/db"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/migrate"
	"github.com/meridianfin/ledgermirror/pkg/outbox"
	"github.com/meridianfin/ledgermirror/pkg/pubsub"
	"github.com/meridianfin/ledgermirror/pkg/redis"
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

	accountsRepo := accounts.NewRepository(dbClient.DB())
	accountsCache := accounts.NewCache(redisClient, 0)
	accountsService, err := accounts.NewService(accountsRepo, accountsCache)
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	balancesRepo := balances.NewRepository(dbClient.DB())
	balancesService, err := balances.NewService(balancesRepo, accountsService, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create balances service", err)
		os.Exit(1)
	}

	journalRepo := journal.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	journalService, err := journal.NewService(journal.ServiceParams{
		Repo:     journalRepo,
		Accounts: accountsRepo,
		Balances: balancesRepo,
		Cursors:  syncpkg.NewCursorRepository(dbClient.DB()),
		Outbox:   outboxService,
		TxRunner: dbClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create journal service", err)
		os.Exit(1)
	}

	reconciliationService, err := reconciliation.NewService(
		reconciliation.NewRepository(dbClient.DB()),
		journalRepo,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

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
			Redis:          redisClient,
			Registry:       promRegistry,
			DBPinger:       dbClient,
			RedisPinger:    redisClient,
			PubSubPinger:   pubsubClient,
			Accounts:       accountsService,
			Balances:       balancesService,
			Journal:        journalService,
			Reconciliation: reconciliationService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
