package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopeListingPricesRead  = "listing_prices:read"
	ScopeListingPricesWrite = "listing_prices:write"
)

// ServiceTokenPayload captures the data available when minting a service JWT.
type ServiceTokenPayload struct {
	Subject string
	Scopes  []string
	JTI     string
}

// ServiceClaims represents the typed JWT presented by internal callers of the admin API.
type ServiceClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the claims grant scope. A write scope implies read on the same resource.
func (c *ServiceClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	if slices.Contains(c.Scopes, scope) {
		return true
	}
	return scope == ScopeListingPricesRead && slices.Contains(c.Scopes, ScopeListingPricesWrite)
}
