package redis

import "strings"

const (
	keyNamespace       = "lpi"
	idempotencyPrefix  = "idempotency"
	listingPricePrefix = "listing_prices"
)

// IdempotencyKey namespaces a consumer scope and event id.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) ListingPriceKey(canonicalHex string) string {
	return ListingPriceKey(canonicalHex)
}

// ListingPriceKey is the cache key for a canonical product's listing prices.
// Hex ids are lowercased so both spellings share one entry.
func ListingPriceKey(canonicalHex string) string {
	return joinKey(listingPricePrefix, strings.ToLower(canonicalHex))
}

// joinKey prefixes the namespace and drops blank segments.
func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
