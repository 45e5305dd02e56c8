package agent

import (
	"context"

	"github.com/finsight-ai/finsight/pkg/models"
)

// EventSink receives the progress events a run emits while the CLI streams.
// *events.Publisher is the production implementation; tests substitute a
// recorder.
type EventSink interface {
	PublishStatus(ctx context.Context, jobID, message string) error
	PublishAgentSwitch(ctx context.Context, jobID, agent, reason string) error
	PublishToolCall(ctx context.Context, jobID, tool, server string, args map[string]any) error
	PublishToolResult(ctx context.Context, jobID, tool string, result any, durationMs int64) error
	PublishMetricFound(ctx context.Context, jobID string, metric map[string]any) error
	PublishAQLQuery(ctx context.Context, jobID, query string, bindVars map[string]any) error
	PublishStepStart(ctx context.Context, jobID string) error
	PublishError(ctx context.Context, jobID, message string) error
}

// MovedFile records one artifact relocated under the output root.
type MovedFile struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RunMetadata is the bookkeeping collected alongside a run's result. It is
// persisted on the chat message, never inside the job result itself.
type RunMetadata struct {
	AgentsUsed  []string              `json:"agents_used"`
	ToolsCalled []models.ToolCallInfo `json:"tools_called"`
	MovedFiles  []MovedFile           `json:"moved_files"`
	TracePath   string                `json:"opencode_trace,omitempty"`
}

// Result is what a completed run produces: the response payload stored on
// the job, plus the run metadata kept separately.
type Result struct {
	Payload  map[string]any
	Metadata RunMetadata
}
