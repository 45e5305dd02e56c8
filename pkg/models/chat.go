package models

import "time"

// Message roles. User messages come from clients; system messages are
// appended by the worker when a job completes.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// ChatMetadata is the chat record kept in the graph database. The
// transcript itself lives in the JSON file at JSONPath; MessageCount,
// LastMessagePreview and AgentsUsed are derived from the transcript on
// every save (metadata may lag the file but never lead it).
type ChatMetadata struct {
	ChatID             string    `json:"chat_id"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview string    `json:"last_message_preview"`
	AgentsUsed         []string  `json:"agents_used"`
	JSONPath           string    `json:"json_path,omitempty"`
}

// ChatContent is the transcript file schema (<chats_dir>/<chat_id>.json).
type ChatContent struct {
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	Messages  []ChatMessage  `json:"messages"`
	Settings  map[string]any `json:"settings"`
}

// ChatMessage is a single transcript entry. Messages are append-only.
type ChatMessage struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata carries execution context for system messages: which
// agents ran, which tools they called, and the raw event replay for the
// job that produced the message.
type MessageMetadata struct {
	AgentsUsed   []string       `json:"agents_used,omitempty"`
	ToolsCalled  []ToolCallInfo `json:"tools_called,omitempty"`
	EventHistory []Event        `json:"event_history,omitempty"`
	JobID        string         `json:"job_id,omitempty"`
}

// ToolCallInfo records one tool invocation made by an agent.
type ToolCallInfo struct {
	Tool   string         `json:"tool"`
	Server string         `json:"server"`
	Args   map[string]any `json:"args,omitempty"`
	Agent  string         `json:"agent,omitempty"`
}
