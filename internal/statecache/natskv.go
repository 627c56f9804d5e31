package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nats-io/nats.go"
)

// NATSKV is a Store backed by a NATS JetStream key-value bucket, shared
// between the members and messages services. Per-key TTL is enforced by
// wrapping every value in an envelope carrying its expiry deadline: a read
// past the deadline is reported as a miss and the stale entry is deleted
// lazily. Bucket contents are therefore meaningful only through this type.
type NATSKV struct {
	kv  nats.KeyValue
	clk clock.Clock
}

// kvEnvelope wraps a cached value with its absolute expiry time.
type kvEnvelope struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewNATSKV opens (creating if needed) the named KV bucket on js.
func NewNATSKV(js nats.JetStreamContext, bucket string, clk clock.Clock) (*NATSKV, error) {
	if clk == nil {
		clk = clock.New()
	}
	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	})
	if err != nil {
		return nil, err
	}
	return &NATSKV{kv: kv, clk: clk}, nil
}

// encodeKey maps store keys onto the NATS KV key alphabet, which does not
// allow ':' separators.
func encodeKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

// Get implements Store.
func (s *NATSKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	key = encodeKey(key)
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var env kvEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, false, err
	}
	if !s.clk.Now().Before(env.ExpiresAt) {
		// Lazy expiry; a failed delete is harmless, the entry stays invisible.
		_ = s.kv.Delete(key)
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Put implements Store.
func (s *NATSKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(kvEnvelope{
		Value:     value,
		ExpiresAt: s.clk.Now().Add(ttl),
	})
	if err != nil {
		return err
	}
	_, err = s.kv.Put(encodeKey(key), data)
	return err
}
