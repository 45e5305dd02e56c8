package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/finsight-ai/finsight/pkg/metrics"
	"github.com/finsight-ai/finsight/pkg/models"
)

// Publisher publishes job events to Redis and serves replay history.
// It is safe for concurrent use; the underlying client pools connections.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher on an existing Redis client.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish stamps the event timestamp if absent, appends it to the job's
// bounded history, and broadcasts it on the live channel.
//
// A history write failure is logged but never blocks the live publish;
// a live publish failure is returned so callers can log it (subscribers
// recover from history on reconnect, so it is not retried).
func (p *Publisher) Publish(ctx context.Context, jobID string, event models.Event) error {
	if event.Timestamp == 0 {
		event = models.NewEvent(event.Type, event.Extra)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %q: %w", event.Type, err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.RPush(ctx, HistoryKey(jobID), payload)
	pipe.LTrim(ctx, HistoryKey(jobID), -MaxHistory, -1)
	pipe.Expire(ctx, HistoryKey(jobID), HistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("Failed to append event to history",
			"job_id", jobID, "event_type", event.Type, "error", err)
	}

	if err := p.rdb.Publish(ctx, Channel(jobID), payload).Err(); err != nil {
		return fmt.Errorf("publishing event %q: %w", event.Type, err)
	}

	metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	return nil
}

// History returns the current replay history for a job, oldest first.
// Entries that fail to decode are skipped.
func (p *Publisher) History(ctx context.Context, jobID string) ([]models.Event, error) {
	raw, err := p.rdb.LRange(ctx, HistoryKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading event history: %w", err)
	}

	history := make([]models.Event, 0, len(raw))
	for _, entry := range raw {
		var ev models.Event
		if err := json.Unmarshal([]byte(entry), &ev); err != nil {
			slog.Warn("Skipping undecodable history entry", "job_id", jobID, "error", err)
			continue
		}
		history = append(history, ev)
	}
	return history, nil
}

// --- Typed helpers ---

// PublishStatus publishes a human-readable progress message.
func (p *Publisher) PublishStatus(ctx context.Context, jobID, message string) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeStatus, map[string]any{
		"message": message,
	}))
}

// PublishAgentSwitch publishes a delegation to another agent.
func (p *Publisher) PublishAgentSwitch(ctx context.Context, jobID, agent, reason string) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeAgentSwitch, map[string]any{
		"agent":  agent,
		"reason": reason,
	}))
}

// PublishToolCall publishes a tool invocation.
func (p *Publisher) PublishToolCall(ctx context.Context, jobID, tool, server string, args map[string]any) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeToolCall, map[string]any{
		"tool":   tool,
		"server": server,
		"args":   args,
	}))
}

// PublishToolResult publishes the outcome of a completed tool invocation.
func (p *Publisher) PublishToolResult(ctx context.Context, jobID, tool string, result any, durationMs int64) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeToolResult, map[string]any{
		"tool":        tool,
		"result":      result,
		"duration_ms": durationMs,
	}))
}

// PublishMetricFound publishes a financial metric extracted by a tool.
func (p *Publisher) PublishMetricFound(ctx context.Context, jobID string, metric map[string]any) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeMetricFound, map[string]any{
		"metric": metric,
	}))
}

// PublishAQLQuery publishes a graph query executed by an agent.
func (p *Publisher) PublishAQLQuery(ctx context.Context, jobID, query string, bindVars map[string]any) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeAQLQuery, map[string]any{
		"query":     query,
		"bind_vars": bindVars,
	}))
}

// PublishStepStart signals that the agent is actively working.
func (p *Publisher) PublishStepStart(ctx context.Context, jobID string) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeStepStart, nil))
}

// PublishComplete publishes the terminal success event carrying the result.
func (p *Publisher) PublishComplete(ctx context.Context, jobID string, result any) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeComplete, map[string]any{
		"result": result,
	}))
}

// PublishError publishes the terminal failure event.
func (p *Publisher) PublishError(ctx context.Context, jobID, message string) error {
	return p.Publish(ctx, jobID, models.NewEvent(EventTypeError, map[string]any{
		"message": message,
	}))
}
