package agent

import (
	"context"
	"sync"
)

// recordedEvent is one captured sink call.
type recordedEvent struct {
	kind    string
	payload map[string]any
}

// sinkRecorder captures sink calls for assertions.
type sinkRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *sinkRecorder) record(kind string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind: kind, payload: payload})
}

func (r *sinkRecorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func (r *sinkRecorder) ofKind(kind string) []recordedEvent {
	out := []recordedEvent{}
	for _, ev := range r.all() {
		if ev.kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *sinkRecorder) PublishStatus(_ context.Context, _, message string) error {
	r.record("status", map[string]any{"message": message})
	return nil
}

func (r *sinkRecorder) PublishAgentSwitch(_ context.Context, _, agent, reason string) error {
	r.record("agent_switch", map[string]any{"agent": agent, "reason": reason})
	return nil
}

func (r *sinkRecorder) PublishToolCall(_ context.Context, _, tool, server string, args map[string]any) error {
	r.record("tool_call", map[string]any{"tool": tool, "server": server, "args": args})
	return nil
}

func (r *sinkRecorder) PublishToolResult(_ context.Context, _, tool string, result any, durationMs int64) error {
	r.record("tool_result", map[string]any{"tool": tool, "result": result, "duration_ms": durationMs})
	return nil
}

func (r *sinkRecorder) PublishMetricFound(_ context.Context, _ string, metric map[string]any) error {
	r.record("metric_found", map[string]any{"metric": metric})
	return nil
}

func (r *sinkRecorder) PublishAQLQuery(_ context.Context, _, query string, bindVars map[string]any) error {
	r.record("aql_query", map[string]any{"query": query, "bind_vars": bindVars})
	return nil
}

func (r *sinkRecorder) PublishStepStart(_ context.Context, _ string) error {
	r.record("step_start", nil)
	return nil
}

func (r *sinkRecorder) PublishError(_ context.Context, _, message string) error {
	r.record("error", map[string]any{"message": message})
	return nil
}

var _ EventSink = (*sinkRecorder)(nil)
