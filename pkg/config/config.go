// Package config loads the environment-driven configuration shared by the
// gateway and the worker. A .env file is loaded by main before this runs.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the umbrella configuration for both processes.
type Config struct {
	// HTTPPort is the gateway listen port.
	HTTPPort string

	// RedisURL backs the event bus and the job queue.
	RedisURL string

	// Arango connection settings for the knowledge graph.
	ArangoURL      string
	ArangoDatabase string
	ArangoUsername string
	ArangoPassword string
	// ArangoSeedData controls insertion of the development dataset at
	// startup.
	ArangoSeedData bool

	// ChatsDir holds the per-chat transcript JSON files.
	ChatsDir string

	// WorkerCount is the number of concurrent queue consumers.
	WorkerCount int

	// AllowedOrigins is the CORS allow-list for the gateway.
	AllowedOrigins []string

	// Agent runner settings.
	Agent AgentConfig
}

// AgentConfig configures the agent CLI subprocess and its output handling.
type AgentConfig struct {
	// Command is the agent CLI binary. Overridable for tests.
	Command string

	// ConfigDir is passed to the child as OPENCODE_CONFIG_DIR and is
	// where agents/router.md is looked up.
	ConfigDir string

	// Agent optionally pins the top-level agent (--agent flag).
	Agent string

	// OutputRoot is the mounted output directory; traces, citations and
	// exports are placed beneath it.
	OutputRoot   string
	ExportsDir   string
	CitationsDir string
	TraceDir     string

	// ScanDirs are searched after a run for freshly written artifacts to
	// relocate under OutputRoot.
	ScanDirs []string

	// LiveMCPEvents suppresses re-publishing MCP tool calls recovered
	// from tool traces when the child already streams them live.
	LiveMCPEvents bool
}

// Load builds the configuration from the environment.
func Load() *Config {
	outputRoot := getEnv("OUTPUT_ROOT", "/output")

	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		ArangoURL:      getEnv("ARANGO_URL", "http://localhost:8529"),
		ArangoDatabase: getEnv("ARANGO_DB", "financial_kg"),
		ArangoUsername: getEnv("ARANGO_USERNAME", "root"),
		ArangoPassword: getEnv("ARANGO_PASSWORD", ""),
		ArangoSeedData: getBool("ARANGO_SEED_DATA", true),

		ChatsDir: getEnv("CHATS_DIR", "./chats"),

		WorkerCount: getInt("WORKER_COUNT", 1),

		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),

		Agent: AgentConfig{
			Command:       getEnv("OPENCODE_COMMAND", "opencode"),
			ConfigDir:     getEnv("OPENCODE_CONFIG_PATH", "/opencode-config"),
			Agent:         getEnv("OPENCODE_AGENT", ""),
			OutputRoot:    outputRoot,
			ExportsDir:    getEnv("OUTPUT_PATH", filepath.Join(outputRoot, "exports")),
			CitationsDir:  getEnv("CITATION_OUTPUT_PATH", filepath.Join(outputRoot, "citations")),
			TraceDir:      getEnv("OPENCODE_TRACE_DIR", filepath.Join(outputRoot, "opencode")),
			ScanDirs:      splitList(getEnv("OPENCODE_OUTPUT_SCAN_DIRS", "/app"), string(os.PathListSeparator)),
			LiveMCPEvents: getBool("LIVE_MCP_TOOL_EVENTS", true),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		// "1"/"0" are handled by ParseBool; anything else keeps the default.
		return defaultValue
	}
	return parsed
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return defaultValue
	}
	return parsed
}

func splitList(value, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
