package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/finsight-ai/finsight/pkg/models"
)

func decodeLine(line string) (map[string]any, error) {
	var event map[string]any
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return nil, err
	}
	return event, nil
}

// handleEvent processes one decoded stream event: dispatch first, then
// update the final-result candidate.
func (r *Runner) handleEvent(ctx context.Context, event map[string]any) {
	r.dispatchEvent(ctx, event)
	r.captureResult(event)
}

// dispatchEvent publishes the matching bus events and tracks agents and
// tools. step_finish and other unknown types are ignored as UI noise.
func (r *Runner) dispatchEvent(ctx context.Context, event map[string]any) {
	switch stringField(event, "type") {
	case "agent_switch":
		r.onAgentSwitch(ctx, event)
	case "tool_use":
		r.onToolUse(ctx, event)
	case "tool_call":
		r.onToolCall(ctx, event)
	case "tool_result":
		r.onToolResult(ctx, event)
	case "status":
		r.publish(func() error {
			return r.sink.PublishStatus(ctx, r.jobID, stringField(event, "message"))
		})
	case "error":
		message := stringField(event, "message")
		if message == "" {
			message = "Unknown error"
		}
		r.publish(func() error { return r.sink.PublishError(ctx, r.jobID, message) })
	case "step_start":
		r.publish(func() error { return r.sink.PublishStepStart(ctx, r.jobID) })
	case "text", "message", "result":
		r.scanForToolTrace(ctx, contentText(event))
	}
}

// captureResult records the latest result candidate. Events outside the
// content-bearing types can still carry a top-level response field, so the
// promotion applies to every type the content cases do not claim.
func (r *Runner) captureResult(event map[string]any) {
	switch stringField(event, "type") {
	case "result":
		var content any
		switch {
		case event["data"] != nil:
			content = event["data"]
		case event["content"] != nil:
			content = event["content"]
		default:
			content = event
		}
		if m, ok := content.(map[string]any); ok {
			r.finalResult = m
		} else if s := extractOutputText(content); s != "" {
			r.finalResult = map[string]any{"response": s}
		}
	case "text":
		part := mapField(event, "part")
		if content := firstString(stringField(part, "text"), stringField(event, "text"), stringField(event, "content")); content != "" {
			r.finalResult = map[string]any{"response": content}
		}
	case "message":
		if content := firstString(stringField(event, "content"), stringField(event, "text"), stringField(event, "message")); content != "" {
			r.finalResult = map[string]any{"response": content}
		}
	default:
		if response := stringField(event, "response"); response != "" {
			r.finalResult = map[string]any{"response": response}
		}
	}
}

// contentText extracts the display text a content-bearing event carries,
// for tool-trace scanning.
func contentText(event map[string]any) string {
	switch stringField(event, "type") {
	case "text":
		part := mapField(event, "part")
		return firstString(stringField(part, "text"), stringField(event, "text"), stringField(event, "content"))
	case "message":
		return firstString(stringField(event, "content"), stringField(event, "text"), stringField(event, "message"))
	case "result":
		content := firstNonNil(event["data"], event["content"], event["result"])
		if content == nil {
			content = event
		}
		return extractOutputText(content)
	}
	return ""
}

func (r *Runner) onAgentSwitch(ctx context.Context, event map[string]any) {
	agent := stringField(event, "agent")
	if agent == "" {
		agent = "unknown"
	}
	r.publish(func() error {
		return r.sink.PublishAgentSwitch(ctx, r.jobID, agent, stringField(event, "reason"))
	})
	if agent != "unknown" {
		r.agentsUsed = append(r.agentsUsed, agent)
		r.currentAgent = agent
	}
}

// onToolUse handles the CLI's native tool events, which nest the tool name
// and input under part.state. The task tool is agent delegation, not a
// real tool call.
func (r *Runner) onToolUse(ctx context.Context, event map[string]any) {
	part := mapField(event, "part")
	state := mapField(part, "state")
	tool := firstString(stringField(part, "tool"), stringField(event, "tool"), "unknown")
	input := mapField(state, "input")

	if tool == "task" {
		subagent := stringField(input, "subagent_type")
		if subagent != "" {
			reason := stringField(input, "description")
			if reason == "" {
				reason = "Processing request"
			}
			r.publish(func() error {
				return r.sink.PublishAgentSwitch(ctx, r.jobID, subagent, reason)
			})
			r.agentsUsed = append(r.agentsUsed, subagent)
			r.currentAgent = subagent
		}

		output := firstNonNil(state["output"], state["result"], part["output"], part["result"], event["output"], event["result"])
		if text := extractOutputText(output); text != "" {
			r.extractToolsFromOutput(ctx, text, subagent)
		}
		return
	}

	server := classifyServer(tool)
	agent := firstString(stringField(part, "agent"), stringField(event, "agent"), r.currentAgent, "unknown")

	r.publish(func() error {
		return r.sink.PublishToolCall(ctx, r.jobID, tool, server, input)
	})
	r.toolsCalled = append(r.toolsCalled, models.ToolCallInfo{
		Tool: tool, Server: server, Args: input, Agent: agent,
	})

	if strings.Contains(tool, "execute-aql") || strings.Contains(strings.ToLower(tool), "aql") {
		query := firstString(stringField(input, "aql_query"), stringField(input, "query"))
		r.publish(func() error {
			return r.sink.PublishAQLQuery(ctx, r.jobID, query, mapField(input, "bind_vars"))
		})
	}

	if stringField(state, "status") == "completed" && state["output"] != nil {
		r.publish(func() error {
			return r.sink.PublishToolResult(ctx, r.jobID, tool, state["output"], 0)
		})
	}
}

// onToolCall handles pre-flattened tool_call events from custom agents.
func (r *Runner) onToolCall(ctx context.Context, event map[string]any) {
	tool := firstString(stringField(event, "tool"), "unknown")
	server := firstString(stringField(event, "server"), "unknown")
	args := mapField(event, "args")
	agent := firstString(stringField(event, "agent"), r.currentAgent, "unknown")

	r.publish(func() error {
		return r.sink.PublishToolCall(ctx, r.jobID, tool, server, args)
	})
	r.toolsCalled = append(r.toolsCalled, models.ToolCallInfo{
		Tool: tool, Server: server, Args: args, Agent: agent,
	})

	if tool == "arango_query" {
		query := firstString(stringField(args, "query"), stringField(args, "aql"))
		r.publish(func() error {
			return r.sink.PublishAQLQuery(ctx, r.jobID, query, mapField(args, "bind_vars"))
		})
	}
}

func (r *Runner) onToolResult(ctx context.Context, event map[string]any) {
	tool := firstString(stringField(event, "tool"), "unknown")
	result := event["result"]
	r.publish(func() error {
		return r.sink.PublishToolResult(ctx, r.jobID, tool, result, intField(event, "duration_ms"))
	})

	if tool == "task" {
		output := firstNonNil(result, event["output"], event["content"])
		if text := extractOutputText(output); text != "" {
			r.extractToolsFromOutput(ctx, text, "task")
		}
	}

	if m, ok := result.(map[string]any); ok {
		if _, found := m["metric_name"]; found {
			r.publish(func() error { return r.sink.PublishMetricFound(ctx, r.jobID, m) })
		}
	}
}

func (r *Runner) scanForToolTrace(ctx context.Context, content string) {
	if content == "" {
		return
	}
	agent := r.currentAgent
	if agent == "" {
		agent = "unknown"
	}
	r.extractToolsFromOutput(ctx, content, agent)
}

// publish runs a sink call, logging failures without aborting the run. A
// dropped progress event must not fail the job.
func (r *Runner) publish(fn func() error) {
	if err := fn(); err != nil {
		slog.Warn("Failed to publish agent event", "job_id", r.jobID, "error", err)
	}
}

func classifyServer(tool string) string {
	if strings.Contains(strings.ToLower(tool), "arango") {
		return "arangodb"
	}
	return "mcp"
}

// extractOutputText coerces a value of unknown shape to displayable text.
// Maps are probed for the usual content-bearing keys before falling back
// to their JSON encoding.
func extractOutputText(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"output", "content", "text", "response", "message", "result", "data"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	data, err := json.Marshal(output)
	if err != nil {
		return ""
	}
	return string(data)
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func intField(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
