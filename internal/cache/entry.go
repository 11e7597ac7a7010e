package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached value. Entries are never mutated; a put for an
// existing key replaces the entry.
type Entry struct {
	Data      any
	Timestamp time.Time
	TTL       time.Duration
}

// Expired reports whether now - Timestamp > TTL.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// envelope is the durable-tier layout of an entry. Data holds the
// codec-encoded value.
type envelope struct {
	Data      []byte        `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
	TTL       time.Duration `json:"ttl"`
}

func (e envelope) expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

func marshalEnvelope(data []byte, ts time.Time, ttl time.Duration) ([]byte, error) {
	return json.Marshal(envelope{Data: data, Timestamp: ts, TTL: ttl})
}

func unmarshalEnvelope(raw []byte) (envelope, error) {
	var env envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}
