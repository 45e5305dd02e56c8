package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Event is a tagged record published on the event bus. The Type field
// discriminates the variant; all type-specific fields live in Extra so
// unknown event types flow through the SSE layer unmodified.
//
// Timestamp is nanoseconds since epoch on the publisher's clock. It is
// kept as int64 (not float64) across decode/encode so the dedup key
// survives JSON round-trips without precision loss.
type Event struct {
	Type      string
	Timestamp int64
	Extra     map[string]any
}

// NewEvent creates an event of the given type with a fresh timestamp.
func NewEvent(eventType string, extra map[string]any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Extra:     extra,
	}
}

// DedupKey identifies an event for history/live deduplication.
// Two events with the same type and timestamp are considered equivalent.
func (e Event) DedupKey() string {
	return fmt.Sprintf("%s:%d", e.Type, e.Timestamp)
}

// Get returns a type-specific field by name.
func (e Event) Get(key string) any {
	return e.Extra[key]
}

// MarshalJSON flattens Extra alongside the type and timestamp fields.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Extra)+2)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["type"] = e.Type
	if e.Timestamp != 0 {
		m["timestamp"] = e.Timestamp
	}
	return json.Marshal(m)
}

// UnmarshalJSON collects unknown keys into Extra. Numbers are decoded as
// json.Number so nanosecond timestamps and large numeric payloads keep
// full precision when re-encoded.
func (e *Event) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}

	if t, ok := m["type"].(string); ok {
		e.Type = t
	}
	if raw, ok := m["timestamp"]; ok {
		switch v := raw.(type) {
		case json.Number:
			if ts, err := v.Int64(); err == nil {
				e.Timestamp = ts
			}
		case float64:
			e.Timestamp = int64(v)
		}
	}
	delete(m, "type")
	delete(m, "timestamp")
	e.Extra = m
	return nil
}
