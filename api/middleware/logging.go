package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

// Logging writes one entry per request once the handler returns. Probe and
// scrape traffic is logged at debug so it does not drown out API calls.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       routePattern(r),
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case isProbe(r.URL.Path):
				logg.Debug(ctx, "request.complete")
			case status >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.complete")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

// routePattern is the matched chi pattern, so ids do not explode cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func isProbe(path string) bool {
	return strings.HasPrefix(path, "/health/") || path == "/metrics"
}
