package listingprice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	errEmptyPayload = errors.New("price payload is empty")
	errMissingGross = errors.New("price payload has no gross amount")
)

// Price is the decoded form of a quote's price payload. Only Gross takes part in selection.
type Price struct {
	Gross           decimal.Decimal `json:"gross"`
	Net             decimal.Decimal `json:"net"`
	Linked          bool            `json:"linked"`
	ListPrice       *Price          `json:"listPrice,omitempty"`
	RegulationPrice *Price          `json:"regulationPrice,omitempty"`
	Percentage      *Percentage     `json:"percentage,omitempty"`
}

// Percentage is the discount relative to the list price.
type Percentage struct {
	Gross decimal.Decimal `json:"gross"`
	Net   decimal.Decimal `json:"net"`
}

// DecodePrice decodes a price payload. Flat payloads carry gross at the top level.
// Currency-keyed payloads ({"c<currency hex>": {...}}) resolve the entry for currencyID,
// or the only entry when there is exactly one.
func DecodePrice(raw []byte, currencyID uuid.UUID) (Price, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Price{}, errEmptyPayload
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Price{}, fmt.Errorf("decode price payload: %w", err)
	}

	if gross, ok := fields["gross"]; ok {
		if bytes.Equal(bytes.TrimSpace(gross), []byte("null")) {
			return Price{}, errMissingGross
		}
		var p Price
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Price{}, fmt.Errorf("decode price payload: %w", err)
		}
		return p, nil
	}

	if nested, ok := fields["c"+HexID(currencyID)]; ok {
		return DecodePrice(nested, currencyID)
	}
	if len(fields) == 1 {
		for _, nested := range fields {
			nested = bytes.TrimSpace(nested)
			if len(nested) > 0 && nested[0] == '{' {
				return DecodePrice(nested, currencyID)
			}
		}
	}
	return Price{}, errMissingGross
}
