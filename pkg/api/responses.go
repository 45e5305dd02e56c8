package api

import (
	"time"

	"github.com/finsight-ai/finsight/pkg/models"
)

// JobResponse acknowledges a submitted query.
type JobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChatResponse is the chat summary shape shared by the chat endpoints.
// The transcript path is internal and deliberately absent.
type ChatResponse struct {
	ChatID             string    `json:"chat_id"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview string    `json:"last_message_preview"`
	AgentsUsed         []string  `json:"agents_used"`
}

func chatResponse(meta *models.ChatMetadata) ChatResponse {
	agents := meta.AgentsUsed
	if agents == nil {
		agents = []string{}
	}
	return ChatResponse{
		ChatID:             meta.ChatID,
		Title:              meta.Title,
		CreatedAt:          meta.CreatedAt,
		UpdatedAt:          meta.UpdatedAt,
		MessageCount:       meta.MessageCount,
		LastMessagePreview: meta.LastMessagePreview,
		AgentsUsed:         agents,
	}
}

// ChatListResponse pages chat summaries.
type ChatListResponse struct {
	Chats []ChatResponse `json:"chats"`
	Total int            `json:"total"`
}

// ChatDetailResponse is a chat summary plus its full transcript.
type ChatDetailResponse struct {
	ChatResponse
	Messages []models.ChatMessage `json:"messages"`
	Settings map[string]any       `json:"settings"`
}
