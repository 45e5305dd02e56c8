package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMarshalFlattensExtra(t *testing.T) {
	ev := Event{
		Type:      "status",
		Timestamp: 1700000000123456789,
		Extra:     map[string]any{"message": "working"},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "status", m["type"])
	assert.Equal(t, "working", m["message"])
	assert.Contains(t, m, "timestamp")
	assert.NotContains(t, m, "Extra")
}

func TestEventMarshalOmitsZeroTimestamp(t *testing.T) {
	ev := Event{Type: "connected", Extra: map[string]any{"job_id": "j1"}}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.NotContains(t, m, "timestamp")
}

func TestEventRoundTripKeepsNanosecondPrecision(t *testing.T) {
	// Above 2^53, float64 decoding would corrupt the timestamp and break
	// the dedup key across the publish/replay boundary.
	ev := NewEvent("tool_call", map[string]any{"tool": "arango_query"})
	require.Greater(t, ev.Timestamp, int64(1<<53))

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, ev.Timestamp, decoded.Timestamp)
	assert.Equal(t, ev.DedupKey(), decoded.DedupKey())
}

func TestEventUnmarshalCollectsUnknownFields(t *testing.T) {
	raw := `{"type":"custom_event","timestamp":42,"foo":"bar","nested":{"a":1}}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, "custom_event", ev.Type)
	assert.Equal(t, int64(42), ev.Timestamp)
	assert.Equal(t, "bar", ev.Get("foo"))
	assert.Contains(t, ev.Extra, "nested")
	assert.NotContains(t, ev.Extra, "type")
	assert.NotContains(t, ev.Extra, "timestamp")
}

func TestEventDedupKey(t *testing.T) {
	a := Event{Type: "status", Timestamp: 100}
	b := Event{Type: "status", Timestamp: 100}
	c := Event{Type: "status", Timestamp: 101}
	d := Event{Type: "error", Timestamp: 100}

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())
	assert.NotEqual(t, a.DedupKey(), d.DedupKey())
}
