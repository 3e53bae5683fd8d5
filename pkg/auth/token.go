package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
)

// clockSkew is tolerated on exp/iat checks between services.
const clockSkew = 30 * time.Second

var (
	ErrSecretRequired  = errors.New("jwt secret is required")
	ErrIssuerRequired  = errors.New("jwt issuer is required")
	ErrSubjectRequired = errors.New("jwt subject is required")
	ErrInvalidToken    = errors.New("invalid service token")
)

var signingMethod = jwt.SigningMethodHS256

// MintServiceToken signs a token for payload that expires after the
// configured number of minutes. An empty JTI is replaced with a random one.
func MintServiceToken(cfg config.JWTConfig, now time.Time, payload ServiceTokenPayload) (string, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return "", err
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive, got %d", cfg.ExpirationMinutes)
	}
	subject := strings.TrimSpace(payload.Subject)
	if subject == "" {
		return "", ErrSubjectRequired
	}
	for _, scope := range payload.Scopes {
		if !isKnownScope(scope) {
			return "", fmt.Errorf("invalid scope %q", scope)
		}
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	claims := ServiceClaims{
		Scopes: payload.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseServiceToken verifies signature, issuer and expiry. Verification
// failures wrap ErrInvalidToken so callers can map them to 401.
func ParseServiceToken(cfg config.JWTConfig, raw string) (*ServiceClaims, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return nil, err
	}

	claims := &ServiceClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrSubjectRequired)
	}
	return claims, nil
}

// BearerToken extracts the credential from an Authorization header. A bare
// token without the Bearer scheme is accepted too.
func BearerToken(header string) (string, bool) {
	value := strings.TrimSpace(header)
	if strings.EqualFold(value, "bearer") {
		return "", false
	}
	if scheme, rest, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, "bearer") {
		value = strings.TrimSpace(rest)
	}
	return value, value != ""
}

func checkSigningConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return ErrSecretRequired
	case strings.TrimSpace(cfg.Issuer) == "":
		return ErrIssuerRequired
	}
	return nil
}

func isKnownScope(scope string) bool {
	return scope == ScopeListingPricesRead || scope == ScopeListingPricesWrite
}
