// Package agent runs the OpenCode CLI as a subprocess and turns its JSON
// stream into bus events plus a final result payload. One Runner serves
// one job.
package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/finsight-ai/finsight/pkg/config"
	"github.com/finsight-ai/finsight/pkg/models"
)

const notInstalledMsg = "OpenCode CLI not installed. Install it in the worker image or ensure `opencode` is available on PATH."

// maxScanLine caps a single stream line; tool results can carry large
// embedded payloads.
const maxScanLine = 1024 * 1024

// Runner executes one agent run and accumulates its per-run state.
type Runner struct {
	cfg      config.AgentConfig
	sink     EventSink
	redisURL string
	jobID    string

	agentsUsed      []string
	toolsCalled     []models.ToolCallInfo
	processedTraces map[string]struct{}
	currentAgent    string
	finalResult     map[string]any
	tracePath       string
}

// NewRunner builds a runner for a single job. redisURL is handed to the
// child so its tool servers can publish live events on the same bus.
func NewRunner(cfg config.AgentConfig, sink EventSink, redisURL, jobID string) *Runner {
	return &Runner{
		cfg:             cfg,
		sink:            sink,
		redisURL:        redisURL,
		jobID:           jobID,
		processedTraces: make(map[string]struct{}),
	}
}

// Run spawns the CLI with the assembled prompt, streams its output into
// events, and returns the final result once the process exits.
func (r *Runner) Run(ctx context.Context, query string, history []models.ChatMessage) (*Result, error) {
	prompt := r.BuildPrompt(query, history)
	runStart := time.Now()

	if err := r.sink.PublishStatus(ctx, r.jobID, "Starting OpenCode processing..."); err != nil {
		slog.Warn("Failed to publish start status", "job_id", r.jobID, "error", err)
	}

	// Resolve the CLI before spawning: with the stdbuf wrapper in front,
	// a missing binary would otherwise surface as an opaque exit status.
	if _, err := exec.LookPath(r.cfg.Command); err != nil {
		if perr := r.sink.PublishError(ctx, r.jobID, notInstalledMsg); perr != nil {
			slog.Warn("Failed to publish error event", "job_id", r.jobID, "error", perr)
		}
		return nil, errors.New(notInstalledMsg)
	}

	argv := r.commandLine(prompt)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"OPENCODE_CONFIG_DIR="+r.cfg.ConfigDir,
		"OPENCODE_JOB_ID="+r.jobID,
		"REDIS_URL="+r.redisURL,
	)

	// Merge stdout and stderr into one ordered stream, the way the CLI's
	// own diagnostics interleave with its JSON events.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, fmt.Errorf("starting agent CLI: %w", err)
	}
	// The child holds its own copy of the write end; close ours so the
	// scanner sees EOF when the process exits.
	pw.Close()

	trace := r.openTrace()

	var allOutput []string
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), maxScanLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		slog.Debug("Agent output", "job_id", r.jobID, "line", truncateLine(line, 500))
		allOutput = append(allOutput, line)
		if trace != nil {
			fmt.Fprintln(trace, line)
		}

		event, err := decodeLine(line)
		if err != nil {
			// Non-JSON output; could be the actual response.
			if perr := r.sink.PublishStatus(ctx, r.jobID, line); perr != nil {
				slog.Warn("Failed to publish status event", "job_id", r.jobID, "error", perr)
			}
			if len(line) > 50 {
				r.finalResult = map[string]any{"response": line}
			}
			continue
		}
		r.handleEvent(ctx, event)
	}
	scanErr := scanner.Err()
	pr.Close()
	if trace != nil {
		trace.Close()
	}

	waitErr := cmd.Wait()
	if scanErr != nil {
		slog.Warn("Agent output stream truncated", "job_id", r.jobID, "error", scanErr)
	}
	if waitErr != nil {
		tail := outputTail(allOutput, 200)
		if tail == "" {
			tail = "unknown error"
		}
		return nil, fmt.Errorf("agent run failed: %s", tail)
	}

	if r.finalResult == nil && len(allOutput) > 0 {
		r.finalResult = map[string]any{"response": strings.Join(allOutput, "\n")}
	}
	payload := r.finalResult
	if payload == nil {
		payload = map[string]any{"status": "completed", "output": allOutput}
	}

	moved := r.relocateOutputs(payload, runStart)

	return &Result{
		Payload: payload,
		Metadata: RunMetadata{
			AgentsUsed:  dedupOrdered(r.agentsUsed),
			ToolsCalled: r.toolsCalled,
			MovedFiles:  moved,
			TracePath:   r.tracePath,
		},
	}, nil
}

// commandLine builds the argv, line-buffering the child's stdout through
// stdbuf when available so events arrive as they happen.
func (r *Runner) commandLine(prompt string) []string {
	argv := []string{r.cfg.Command, "run", "--format", "json"}
	if r.cfg.Agent != "" {
		argv = append(argv, "--agent", r.cfg.Agent)
	}
	argv = append(argv, prompt)

	if _, err := exec.LookPath("stdbuf"); err == nil {
		argv = append([]string{"stdbuf", "-oL", "-eL"}, argv...)
	}
	return argv
}

// openTrace captures the raw stream for debugging. Failures are tolerated;
// the run proceeds without a trace.
func (r *Runner) openTrace() *os.File {
	if err := os.MkdirAll(r.cfg.TraceDir, 0o755); err != nil {
		slog.Warn("Failed to create trace directory", "dir", r.cfg.TraceDir, "error", err)
		return nil
	}
	path := filepath.Join(r.cfg.TraceDir, r.jobID+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		slog.Warn("Failed to open trace file", "path", path, "error", err)
		return nil
	}
	r.tracePath = path
	return f
}

func outputTail(lines []string, n int) string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func dedupOrdered(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := []string{}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
