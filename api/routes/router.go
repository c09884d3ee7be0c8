package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianfin/ledgermirror/api/controllers"
	"github.com/meridianfin/ledgermirror/api/middleware"
	"github.com/meridianfin/ledgermirror/internal/accounts"
	"github.com/meridianfin/ledgermirror/internal/balances"
	"github.com/meridianfin/ledgermirror/internal/journal"
	"github.com/meridianfin/ledgermirror/internal/reconciliation"
	"github.com/meridianfin/ledgermirror/pkg/config"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/redis"
)

// RouterParams collect everything the HTTP surface depends on. Pingers may be
// nil in partial deployments; their checks are skipped.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *redis.Client
	Registry *prometheus.Registry

	DBPinger     controllers.Pinger
	RedisPinger  controllers.Pinger
	PubSubPinger controllers.Pinger

	Accounts       accounts.Service
	Balances       balances.Service
	Journal        journal.Service
	Reconciliation reconciliation.Service
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DBPinger, p.RedisPinger, p.PubSubPinger))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(p.Redis, p.Logger))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", controllers.AccountCreate(p.Accounts, p.Logger))
			r.Get("/", controllers.AccountList(p.Accounts, p.Logger))
			r.Get("/{accountId}", controllers.AccountGet(p.Accounts, p.Logger))
			r.Post("/{accountId}/deactivate", controllers.AccountDeactivate(p.Accounts, p.Logger))
			r.Get("/{accountId}/balance", controllers.AccountBalance(p.Balances, p.Logger))
			r.Post("/{accountId}/balance/rebuild", controllers.AccountBalanceRebuild(p.Balances, p.Logger))
		})

		r.Route("/journal", func(r chi.Router) {
			r.Post("/entries", controllers.JournalPost(p.Journal, p.Logger))
			r.Get("/entries", controllers.JournalList(p.Journal, p.Logger))
			r.Get("/entries/{entryId}", controllers.JournalGet(p.Journal, p.Logger))
			r.Post("/entries/{entryId}/reverse", controllers.JournalReverse(p.Journal, p.Logger))
			r.Get("/transfers/{transferId}", controllers.JournalGetByTransfer(p.Journal, p.Logger))
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/events", controllers.ReconciliationIngest(p.Reconciliation, p.Logger))
			r.Get("/{reference}", controllers.ReconciliationStatus(p.Reconciliation, p.Logger))
			r.Post("/{reference}/reconcile", controllers.ReconciliationConfirm(p.Reconciliation, p.Logger))
		})
	})

	return r
}
