package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/listingprice-indexer/pkg/auth"
)

type contextKey string

const ctxClaims contextKey = "service_claims"

// ClaimsFromContext returns the verified token claims, or nil on unauthenticated routes.
func ClaimsFromContext(ctx context.Context) *pkgAuth.ServiceClaims {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxClaims).(*pkgAuth.ServiceClaims); ok {
		return v
	}
	return nil
}

// SubjectFromContext returns the calling service name.
func SubjectFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}

// WithClaims injects claims into the context. Used by tests and internal callers.
func WithClaims(ctx context.Context, claims *pkgAuth.ServiceClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClaims, claims)
}
