package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finsight-ai/finsight/pkg/models"
)

const (
	// historyWindow bounds how many prior messages are injected into the
	// prompt to keep the agent's context window in check.
	historyWindow = 10

	// historyMessageLimit truncates individual history messages, in runes.
	historyMessageLimit = 500
)

// BuildPrompt assembles the CLI prompt: router instructions (when the
// config directory carries agents/router.md), recent conversation context,
// and the current query.
func (r *Runner) BuildPrompt(query string, history []models.ChatMessage) string {
	var b strings.Builder

	if instructions := r.routerInstructions(); instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	b.WriteString(formatChatHistory(history))

	fmt.Fprintf(&b, "Current Query:\n%s\n\nReturn the delegated agent's response to the user.", query)
	return b.String()
}

func (r *Runner) routerInstructions() string {
	path := filepath.Join(r.cfg.ConfigDir, "agents", "router.md")
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func formatChatHistory(messages []models.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	if len(messages) > historyWindow {
		messages = messages[len(messages)-historyWindow:]
	}

	var b strings.Builder
	b.WriteString("## Previous Conversation Context\n\n")
	for _, msg := range messages {
		role := "Assistant"
		if msg.Role == models.RoleUser {
			role = "User"
		}
		content := msg.Content
		if runes := []rune(content); len(runes) > historyMessageLimit {
			content = string(runes[:historyMessageLimit]) + "..."
		}
		fmt.Fprintf(&b, "**%s**: %s\n\n", role, content)
	}
	b.WriteString("---\n\n")
	return b.String()
}
