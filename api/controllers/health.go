package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/meridianfin/ledgermirror/api/responses"
	"github.com/meridianfin/ledgermirror/pkg/config"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

const readyTimeout = 5 * time.Second

type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LedgerMirror-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the backing services. Nil pingers are skipped so the
// endpoint stays useful in partial deployments.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, pubsubP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LedgerMirror-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]Pinger{
			"db":     dbP,
			"redis":  redisP,
			"pubsub": pubsubP,
		}
		status := map[string]string{}
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" not ready"))
				return
			}
			status[name] = "ok"
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
