package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNoDecoder is wrapped by Decode when nothing is registered for the
// type and version.
var ErrNoDecoder = errors.New("no decoder registered")

// Decoder turns an envelope's data member into a typed payload.
type Decoder func(data json.RawMessage) (any, error)

type decoderKey struct {
	eventType string
	version   int
}

func (k decoderKey) String() string { return fmt.Sprintf("%s@v%d", k.eventType, k.version) }

// DecoderRegistry maps event type and envelope version to a payload decoder.
// It is safe for concurrent use.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[decoderKey]Decoder{}}
}

// Register replaces any decoder already set for the pair.
func (r *DecoderRegistry) Register(eventType string, version int, decoder Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType, version}] = decoder
}

func (r *DecoderRegistry) lookup(eventType string, version int) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[decoderKey{eventType, version}]
	return d, ok
}

func (r *DecoderRegistry) Has(eventType string, version int) bool {
	_, ok := r.lookup(eventType, version)
	return ok
}

func (r *DecoderRegistry) Decode(eventType string, version int, data json.RawMessage) (any, error) {
	key := decoderKey{eventType, version}
	decoder, ok := r.lookup(eventType, version)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoDecoder, key)
	}
	v, err := decoder(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// JSONDecoder returns a Decoder that unmarshals into a fresh *T.
func JSONDecoder[T any]() Decoder {
	return func(data json.RawMessage) (any, error) {
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
