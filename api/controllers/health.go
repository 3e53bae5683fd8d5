package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/listingprice-indexer/api/responses"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LPI-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LPI-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed error
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
				}
				continue
			}
			checks[name] = "up"
		}
		if failed != nil {
			if typed := pkgerrors.As(failed); typed != nil {
				typed.WithDetails(checks)
			}
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
