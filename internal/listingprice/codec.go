package listingprice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	RecordType    = "listing_price"
	SchemaVersion = 1
)

// ErrUnsupportedRecord is returned by Decode for records it cannot interpret.
var ErrUnsupportedRecord = errors.New("unsupported listing price record")

// Record is one element of the cached listing price column.
type Record struct {
	Type          string          `json:"type"`
	SchemaVersion int             `json:"schemaVersion"`
	ID            string          `json:"id"`
	VariantID     string          `json:"variantId"`
	RuleID        string          `json:"ruleId"`
	CurrencyID    string          `json:"currencyId"`
	Price         json.RawMessage `json:"price"`
}

// Encode serializes the selected entries. The same entries always produce the same bytes.
// Price payloads are compacted but otherwise written as stored, without HTML escaping.
func Encode(entries []Quote) ([]byte, error) {
	records := make([]Record, 0, len(entries))
	for _, q := range entries {
		if !json.Valid(q.Payload) {
			return nil, fmt.Errorf("quote %s: price payload is not valid json", HexID(q.ID))
		}
		records = append(records, Record{
			Type:          RecordType,
			SchemaVersion: SchemaVersion,
			ID:            HexID(q.ID),
			VariantID:     HexID(q.VariantID),
			RuleID:        HexID(q.RuleID),
			CurrencyID:    HexID(q.CurrencyID),
			Price:         json.RawMessage(q.Payload),
		})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode listing prices: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a cached column. Null or empty input yields no records.
func Decode(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode listing prices: %w", err)
	}
	for i, rec := range records {
		if rec.Type != RecordType {
			return nil, fmt.Errorf("%w: record %d has type %q", ErrUnsupportedRecord, i, rec.Type)
		}
		if rec.SchemaVersion < 1 || rec.SchemaVersion > SchemaVersion {
			return nil, fmt.Errorf("%w: record %d has schema version %d", ErrUnsupportedRecord, i, rec.SchemaVersion)
		}
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
