// FinSight worker — consumes queued query jobs, runs the agent CLI for
// each, and publishes progress events on the bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/finsight-ai/finsight/pkg/chats"
	"github.com/finsight-ai/finsight/pkg/config"
	"github.com/finsight-ai/finsight/pkg/events"
	"github.com/finsight-ai/finsight/pkg/graph"
	"github.com/finsight-ai/finsight/pkg/jobs"
	"github.com/finsight-ai/finsight/pkg/version"
	"github.com/finsight-ai/finsight/pkg/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg := config.Load()
	slog.Info("Starting FinSight worker",
		"version", version.Full(), "workers", cfg.WorkerCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Connect to Redis (queue + event bus)
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to Redis")

	jobStore := jobs.NewStore(rdb)
	bus := events.NewPublisher(rdb)

	// 2. Chat store for history context and response journaling. Metadata
	// lives in Arango alongside the gateway's view of it.
	gclient, err := graph.Connect(ctx, graph.Config{
		URL:      cfg.ArangoURL,
		Database: cfg.ArangoDatabase,
		Username: cfg.ArangoUsername,
		Password: cfg.ArangoPassword,
	})
	if err != nil {
		slog.Error("Failed to connect to ArangoDB", "error", err)
		os.Exit(1)
	}
	chatStore := chats.NewStore(gclient.ChatStore(), cfg.ChatsDir)

	// 3. Executor and consumers
	executor := worker.NewCLIExecutor(cfg.Agent, bus, cfg.RedisURL)

	consumers := make([]*worker.Consumer, 0, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		c := worker.NewConsumer(jobStore, bus, chatStore, executor)
		c.Start(ctx)
		consumers = append(consumers, c)
	}
	slog.Info("Worker started successfully", "consumers", len(consumers))

	// 4. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("Received shutdown signal", "signal", fmt.Sprint(sig))

	// Stop consumers before cancelling the shared context: cancellation
	// would kill an in-flight agent subprocess and fail the terminal
	// status writes, stranding the job in processing.
	for _, c := range consumers {
		c.Stop()
	}
	cancel()
	slog.Info("Worker stopped")
}
