package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/listingprice-indexer/api/controllers"
	"github.com/angelmondragon/listingprice-indexer/api/middleware"
	"github.com/angelmondragon/listingprice-indexer/internal/cron"
	pkgAuth "github.com/angelmondragon/listingprice-indexer/pkg/auth"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

// Deps are the services mounted by the admin API.
type Deps struct {
	Indexer  controllers.ListingPriceUpdater
	Reader   controllers.ListingPriceReader
	Reindex  controllers.ReindexRunner
	Lock     cron.Lock
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/listing-prices", func(r chi.Router) {
			r.Use(middleware.RequireScope(pkgAuth.ScopeListingPricesWrite, logg))
			r.Post("/update", controllers.ListingPricesUpdate(deps.Indexer, cfg.Indexer.MaxBatchSize, logg))
			r.Post("/reindex", controllers.ListingPricesReindex(deps.Reindex, deps.Lock, logg))
		})

		r.With(middleware.RequireScope(pkgAuth.ScopeListingPricesRead, logg)).
			Get("/products/{productId}/listing-prices", controllers.ListingPricesGet(deps.Reader, logg))
	})

	return r
}
