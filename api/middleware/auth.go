package middleware

import (
	"net/http"

	"github.com/angelmondragon/listingprice-indexer/api/responses"
	pkgAuth "github.com/angelmondragon/listingprice-indexer/pkg/auth"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

var errMissingCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")

// Auth rejects requests without a valid service token and stores the claims
// on the request context for RequireScope and the handlers.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, errMissingCredentials)
				return
			}
			claims, err := pkgAuth.ParseServiceToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if logg != nil {
				ctx = logg.WithSubject(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope must be mounted after Auth.
func RequireScope(scope string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch claims := ClaimsFromContext(r.Context()); {
			case claims == nil:
				responses.WriteError(r.Context(), logg, w, errMissingCredentials)
			case !claims.HasScope(scope):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "token lacks scope "+scope))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
