// Package events provides per-job event delivery over Redis pub/sub with a
// bounded replay history for late subscribers.
//
// Every publish does two things: append the serialized event to the
// `event_history:<job_id>` list (trimmed to the last MaxHistory entries,
// TTL reset to HistoryTTL), then PUBLISH on the `events:<job_id>` channel.
// Subscribers SUBSCRIBE first and replay the history afterwards, so no
// event published in between is lost; overlap is filtered by the
// (type, timestamp) dedup key.
package events

import "time"

// Event types emitted by the pipeline.
const (
	EventTypeStatus      = "status"
	EventTypeAgentSwitch = "agent_switch"
	EventTypeToolCall    = "tool_call"
	EventTypeToolResult  = "tool_result"
	EventTypeMetricFound = "metric_found"
	EventTypeAQLQuery    = "aql_query"
	EventTypeStepStart   = "step_start"
	EventTypeComplete    = "complete"
	EventTypeError       = "error"

	// EventTypeConnected is synthesized by the SSE gateway as the first
	// frame of every stream; it is never published on the bus.
	EventTypeConnected = "connected"
)

// Redis key layout.
const (
	channelPrefix = "events:"
	historyPrefix = "event_history:"
)

// History bounds.
const (
	// MaxHistory is the maximum number of events retained per job.
	MaxHistory = 100

	// HistoryTTL is how long a job's history survives after the last write.
	HistoryTTL = 300 * time.Second
)

// Channel returns the live pub/sub channel name for a job.
func Channel(jobID string) string {
	return channelPrefix + jobID
}

// HistoryKey returns the bounded-history list key for a job.
func HistoryKey(jobID string) string {
	return historyPrefix + jobID
}

// IsTerminal reports whether an event type ends a subscription.
func IsTerminal(eventType string) bool {
	return eventType == EventTypeComplete || eventType == EventTypeError
}
