// FinSight gateway — serves the HTTP API, manages the job queue and chat
// store, and streams job events to clients over SSE.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/finsight-ai/finsight/pkg/api"
	"github.com/finsight-ai/finsight/pkg/chats"
	"github.com/finsight-ai/finsight/pkg/config"
	"github.com/finsight-ai/finsight/pkg/events"
	"github.com/finsight-ai/finsight/pkg/graph"
	"github.com/finsight-ai/finsight/pkg/jobs"
	"github.com/finsight-ai/finsight/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg := config.Load()
	slog.Info("Starting FinSight gateway",
		"version", version.Full(), "http_port", cfg.HTTPPort)

	ctx := context.Background()

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

	// 2. Connect to ArangoDB and ensure the schema
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
	if err := gclient.EnsureSchema(ctx); err != nil {
		slog.Error("Failed to ensure graph schema", "error", err)
		os.Exit(1)
	}
	if cfg.ArangoSeedData {
		if err := gclient.Seed(ctx); err != nil {
			slog.Error("Failed to seed graph data", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Connected to ArangoDB", "database", cfg.ArangoDatabase)

	// 3. Chat store: Arango metadata + JSON transcripts on disk
	chatStore := chats.NewStore(gclient.ChatStore(), cfg.ChatsDir)

	// 4. HTTP server
	server := api.NewServer(jobStore, bus, chatStore, gclient, cfg.AllowedOrigins)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 5. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Gateway stopped")
}
