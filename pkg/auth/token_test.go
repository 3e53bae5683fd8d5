package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "listingprice-indexer",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseServiceToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, err := MintServiceToken(cfg, now, ServiceTokenPayload{
		Subject: "catalog-sync",
		Scopes:  []string{ScopeListingPricesWrite},
	})
	if err != nil {
		t.Fatalf("mint service token: %v", err)
	}

	claims, err := ParseServiceToken(cfg, token)
	if err != nil {
		t.Fatalf("parse service token: %v", err)
	}
	if claims.Subject != "catalog-sync" || claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected subject/issuer %s/%s", claims.Subject, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be generated")
	}
	if !claims.HasScope(ScopeListingPricesWrite) || !claims.HasScope(ScopeListingPricesRead) {
		t.Fatalf("write scope should grant write and read, got %v", claims.Scopes)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		t.Fatalf("expected expiry after now")
	}
}

func TestMintKeepsProvidedJTI(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintServiceToken(cfg, time.Now(), ServiceTokenPayload{Subject: "s", JTI: " run-42 "})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := ParseServiceToken(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ID != "run-42" {
		t.Fatalf("expected trimmed jti, got %q", claims.ID)
	}
}

func TestReadScopeDoesNotGrantWrite(t *testing.T) {
	claims := &ServiceClaims{Scopes: []string{ScopeListingPricesRead}}
	if claims.HasScope(ScopeListingPricesWrite) {
		t.Fatalf("read scope must not grant write")
	}
	var nilClaims *ServiceClaims
	if nilClaims.HasScope(ScopeListingPricesRead) {
		t.Fatalf("nil claims must not grant scopes")
	}
}

func TestMintServiceTokenValidation(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	if _, err := MintServiceToken(cfg, now, ServiceTokenPayload{Subject: "  "}); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("expected subject error, got %v", err)
	}
	if _, err := MintServiceToken(cfg, now, ServiceTokenPayload{Subject: "s", Scopes: []string{"orders:write"}}); err == nil || !strings.Contains(err.Error(), "invalid scope") {
		t.Fatalf("expected invalid scope error, got %v", err)
	}
	bad := cfg
	bad.ExpirationMinutes = 0
	if _, err := MintServiceToken(bad, now, ServiceTokenPayload{Subject: "s"}); err == nil {
		t.Fatalf("expected expiration error")
	}
	noIssuer := cfg
	noIssuer.Issuer = " "
	if _, err := MintServiceToken(noIssuer, now, ServiceTokenPayload{Subject: "s"}); !errors.Is(err, ErrIssuerRequired) {
		t.Fatalf("expected issuer error, got %v", err)
	}
	if _, err := ParseServiceToken(config.JWTConfig{Issuer: "x"}, "token"); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected secret error, got %v", err)
	}
}

func TestParseServiceTokenRejections(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintServiceToken(cfg, time.Now(), ServiceTokenPayload{Subject: "s"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	expired, err := MintServiceToken(cfg, time.Now().Add(-2*time.Hour), ServiceTokenPayload{Subject: "s"})
	if err != nil {
		t.Fatalf("mint expired: %v", err)
	}

	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"
	wrongSecret := cfg
	wrongSecret.Secret = "other"

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
	}{
		"issuer mismatch": {otherIssuer, token},
		"expired":         {cfg, expired},
		"bad signature":   {wrongSecret, token},
		"garbage":         {cfg, "not-a-jwt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseServiceToken(tc.cfg, tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"abc", "abc", true},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := BearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("BearerToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
