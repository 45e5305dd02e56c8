package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-ai/finsight/pkg/models"
)

func TestChatDocRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	meta := models.ChatMetadata{
		ChatID:             "chat-1",
		Title:              "Revenue analysis",
		CreatedAt:          now,
		UpdatedAt:          now.Add(time.Minute),
		MessageCount:       3,
		LastMessagePreview: "the preview",
		AgentsUsed:         []string{"metrics-agent"},
		JSONPath:           "/chats/chat-1.json",
	}

	doc := toDoc(&meta)
	assert.Equal(t, "chat-1", doc.Key, "chat ID maps to the document key")

	back := doc.toMetadata()
	assert.Equal(t, meta, back)
}

func TestChatDocNilAgents(t *testing.T) {
	doc := chatDoc{Key: "c", AgentsUsed: nil}
	back := doc.toMetadata()
	assert.NotNil(t, back.AgentsUsed, "agents list is never nil in API responses")
	assert.Empty(t, back.AgentsUsed)
}
