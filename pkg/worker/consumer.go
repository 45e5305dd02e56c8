// Package worker consumes queued query jobs and drives them through the
// agent runner, publishing progress on the event bus and recording the
// outcome on the job and its chat.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/finsight-ai/finsight/pkg/agent"
	"github.com/finsight-ai/finsight/pkg/chats"
	"github.com/finsight-ai/finsight/pkg/events"
	"github.com/finsight-ai/finsight/pkg/jobs"
	"github.com/finsight-ai/finsight/pkg/metrics"
	"github.com/finsight-ai/finsight/pkg/models"
)

// popTimeout is the blocking-pop window; it doubles as the shutdown
// latency bound for an idle consumer.
const popTimeout = time.Second

// Executor runs one job to completion. The production implementation
// spawns the agent CLI; tests substitute a stub.
type Executor interface {
	Execute(ctx context.Context, job *models.Job, history []models.ChatMessage) (*agent.Result, error)
}

// ChatJournal is the slice of the chat store the consumer needs: history
// for context, and appending the system response.
type ChatJournal interface {
	GetContent(ctx context.Context, chatID string) (*models.ChatContent, error)
	AppendMessage(ctx context.Context, chatID string, msg models.ChatMessage) (*models.ChatMessage, error)
}

// Consumer is the queue consumer loop. One Consumer runs one job at a
// time; run several for parallelism.
type Consumer struct {
	jobs     *jobs.Store
	bus      *events.Publisher
	chats    ChatJournal
	executor Executor

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConsumer creates a consumer. chats may be nil (responses are then not
// journaled, matching jobs submitted without a chat).
func NewConsumer(jobStore *jobs.Store, bus *events.Publisher, journal ChatJournal, executor Executor) *Consumer {
	return &Consumer{
		jobs:     jobStore,
		bus:      bus,
		chats:    journal,
		executor: executor,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the consume loop in a goroutine.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop signals the loop to finish and waits for it. Safe to call twice.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	slog.Info("Queue consumer started, waiting for jobs")
	for {
		select {
		case <-c.stopCh:
			slog.Info("Queue consumer shutting down")
			return
		case <-ctx.Done():
			slog.Info("Context cancelled, queue consumer shutting down")
			return
		default:
		}

		jobID, err := c.jobs.PopBlocking(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			var netErr net.Error
			if errors.As(err, &netErr) {
				slog.Error("Redis connection error", "error", err)
				c.sleep(5 * time.Second)
			} else {
				slog.Error("Queue pop failed", "error", err)
				c.sleep(time.Second)
			}
			continue
		}
		if jobID == "" {
			continue
		}

		slog.Info("Dequeued job", "job_id", jobID)
		c.process(ctx, jobID)
	}
}

func (c *Consumer) sleep(d time.Duration) {
	select {
	case <-c.stopCh:
	case <-time.After(d):
	}
}

// process runs a single job end to end. Failures mark the job failed and
// publish a terminal error event; they never crash the loop.
func (c *Consumer) process(ctx context.Context, jobID string) {
	started := time.Now()

	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		slog.Error("Job not found", "job_id", jobID, "error", err)
		return
	}

	log := slog.With("job_id", jobID)
	log.Info("Processing job", "query", truncate(job.Query, 100), "chat_id", job.ChatID)

	if _, err := c.jobs.Update(ctx, jobID, models.JobUpdate{Status: models.JobStatusProcessing}); err != nil {
		log.Error("Failed to mark job processing", "error", err)
		return
	}
	if err := c.bus.PublishStatus(ctx, jobID, "Processing query..."); err != nil {
		log.Warn("Failed to publish processing status", "error", err)
	}

	history := c.loadHistory(ctx, job.ChatID)

	res, err := c.executor.Execute(ctx, job, history)
	if err != nil {
		log.Error("Job failed", "error", err)
		if _, uerr := c.jobs.Update(ctx, jobID, models.JobUpdate{
			Status: models.JobStatusFailed,
			Error:  err.Error(),
		}); uerr != nil {
			log.Error("Failed to mark job failed", "error", uerr)
		}
		if perr := c.bus.PublishError(ctx, jobID, err.Error()); perr != nil {
			log.Warn("Failed to publish error event", "error", perr)
		}
		metrics.JobsProcessed.WithLabelValues(string(models.JobStatusFailed)).Inc()
		return
	}

	if _, err := c.jobs.Update(ctx, jobID, models.JobUpdate{
		Status: models.JobStatusCompleted,
		Result: res.Payload,
	}); err != nil {
		log.Error("Failed to mark job completed", "error", err)
	}
	if err := c.bus.PublishComplete(ctx, jobID, res.Payload); err != nil {
		log.Warn("Failed to publish complete event", "error", err)
	}

	if job.ChatID != "" && c.chats != nil {
		c.saveResponse(ctx, job.ChatID, jobID, res)
	}

	metrics.JobsProcessed.WithLabelValues(string(models.JobStatusCompleted)).Inc()
	metrics.JobDuration.Observe(time.Since(started).Seconds())
	log.Info("Job completed", "agents", res.Metadata.AgentsUsed, "duration", time.Since(started))
}

// loadHistory fetches the chat's messages for prompt context. Any failure
// degrades to an empty history; a missing chat must not fail the job.
func (c *Consumer) loadHistory(ctx context.Context, chatID string) []models.ChatMessage {
	if chatID == "" || c.chats == nil {
		return nil
	}
	content, err := c.chats.GetContent(ctx, chatID)
	if err != nil {
		if !errors.Is(err, chats.ErrNotFound) {
			slog.Error("Failed to load chat history", "chat_id", chatID, "error", err)
		} else {
			slog.Warn("Chat not found for history", "chat_id", chatID)
		}
		return nil
	}
	return content.Messages
}

// saveResponse appends the system message, carrying the drained event
// history so the chat renders identically to the live stream.
func (c *Consumer) saveResponse(ctx context.Context, chatID, jobID string, res *agent.Result) {
	eventHistory, err := c.bus.History(ctx, jobID)
	if err != nil {
		slog.Warn("Failed to load event history for chat", "job_id", jobID, "error", err)
		eventHistory = []models.Event{}
	}

	msg := models.ChatMessage{
		ID:      "msg_" + jobID,
		Role:    models.RoleSystem,
		Content: responseText(res.Payload),
		Metadata: &models.MessageMetadata{
			AgentsUsed:   res.Metadata.AgentsUsed,
			ToolsCalled:  res.Metadata.ToolsCalled,
			EventHistory: eventHistory,
			JobID:        jobID,
		},
	}
	if _, err := c.chats.AppendMessage(ctx, chatID, msg); err != nil {
		slog.Error("Failed to save response to chat", "chat_id", chatID, "job_id", jobID, "error", err)
		return
	}
	slog.Info("Saved response to chat",
		"chat_id", chatID, "agents", res.Metadata.AgentsUsed, "tools", len(res.Metadata.ToolsCalled))
}

// responseText flattens the result payload to the display text stored on
// the chat message.
func responseText(payload map[string]any) string {
	if s, ok := payload["response"].(string); ok {
		return s
	}
	if s, ok := payload["text"].(string); ok {
		return s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
