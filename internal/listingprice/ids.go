package listingprice

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseID accepts canonical uuid text or the 32-char hex form used by the storefront.
func ParseID(raw string) (uuid.UUID, error) {
	s := strings.TrimSpace(raw)
	switch len(s) {
	case 32:
		b, err := hex.DecodeString(s)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid hex id %q: %w", raw, err)
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid hex id %q: %w", raw, err)
		}
		return nonNil(raw, id)
	case 36:
		id, err := uuid.Parse(s)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", raw, err)
		}
		return nonNil(raw, id)
	default:
		return uuid.Nil, fmt.Errorf("invalid id %q: expected 32 hex chars or uuid text", raw)
	}
}

// HexID renders id as 32 lowercase hex characters.
func HexID(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

func nonNil(raw string, id uuid.UUID) (uuid.UUID, error) {
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: nil uuid", raw)
	}
	return id, nil
}
