package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EnvelopeVersion is the envelope schema version written by Emit. Readers
// treat a missing version as this one.
const EnvelopeVersion = 1

// ErrEmptyPayload is returned by ParseEnvelope when data is absent or null.
var ErrEmptyPayload = errors.New("envelope data is empty")

// PayloadEnvelope wraps every payload stored in outbox_events and every
// inbound price event.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes raw, defaults the version and rejects a missing data
// member.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode payload envelope: %w", err)
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, ErrEmptyPayload
	}
	return env, nil
}
