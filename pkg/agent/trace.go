package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/finsight-ai/finsight/pkg/models"
)

// Sub-agents append a structured <tool_trace> block (a JSON array of tool
// calls) to their output so tool activity survives the delegation boundary.
var toolTraceRe = regexp.MustCompile(`(?is)<tool_trace>(.*?)</tool_trace>`)

// extractToolsFromOutput recovers tool calls from a sub-agent's textual
// output. Each distinct trace block is processed once per run; when the
// child already streams MCP tool events live, trace-derived MCP events are
// recorded for metadata but not re-published.
func (r *Runner) extractToolsFromOutput(ctx context.Context, output, agent string) {
	match := toolTraceRe.FindStringSubmatch(output)
	if match == nil {
		return
	}
	raw := strings.TrimSpace(match[1])
	if _, done := r.processedTraces[raw]; done {
		return
	}
	r.processedTraces[raw] = struct{}{}

	var calls []map[string]any
	if err := json.Unmarshal([]byte(raw), &calls); err != nil {
		return
	}
	if agent == "" {
		agent = "unknown"
	}

	for _, call := range calls {
		tool := firstString(stringField(call, "tool"), "unknown")
		args, ok := call["args"].(map[string]any)
		if !ok {
			args = map[string]any{}
			for key, value := range call {
				switch key {
				case "tool", "result", "result_count":
				default:
					args[key] = value
				}
			}
		}
		server := classifyServer(tool)
		skipPublish := r.cfg.LiveMCPEvents && server == "mcp"

		if !skipPublish {
			r.publish(func() error {
				return r.sink.PublishToolCall(ctx, r.jobID, tool, server, args)
			})
		}
		r.toolsCalled = append(r.toolsCalled, models.ToolCallInfo{
			Tool: tool, Server: server, Args: args, Agent: agent,
		})

		if query := stringField(args, "query"); query != "" {
			r.publish(func() error {
				return r.sink.PublishAQLQuery(ctx, r.jobID, query, mapField(args, "bind_vars"))
			})
		}

		if !skipPublish && (call["result"] != nil || call["result_count"] != nil) {
			result := map[string]any{"result": call["result"], "count": call["result_count"]}
			r.publish(func() error {
				return r.sink.PublishToolResult(ctx, r.jobID, tool, result, 0)
			})
		}
	}
}
