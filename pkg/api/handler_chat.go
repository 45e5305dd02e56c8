package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finsight-ai/finsight/pkg/models"
)

// CreateChat opens a new chat session.
func (s *Server) CreateChat(c *gin.Context) {
	var req ChatCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meta, err := s.chats.Create(c.Request.Context(), req.Title, req.InitialMessage)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse(meta))
}

// ListChats pages chats most-recently-updated first.
func (s *Server) ListChats(c *gin.Context) {
	skip := intQuery(c, "skip", 0)
	limit := intQuery(c, "limit", 20)

	list, err := s.chats.List(c.Request.Context(), skip, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	total, err := s.chats.Count(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := ChatListResponse{Chats: make([]ChatResponse, 0, len(list)), Total: total}
	for i := range list {
		resp.Chats = append(resp.Chats, chatResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetChat returns chat metadata plus the full transcript.
func (s *Server) GetChat(c *gin.Context) {
	chatID := c.Param("chat_id")

	meta, err := s.chats.GetMetadata(c.Request.Context(), chatID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	content, err := s.chats.GetContent(c.Request.Context(), chatID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatDetailResponse{
		ChatResponse: chatResponse(meta),
		Messages:     content.Messages,
		Settings:     content.Settings,
	})
}

// UpdateChat applies partial metadata updates. A request carrying no
// recognized field is rejected rather than silently ignored.
func (s *Server) UpdateChat(c *gin.Context) {
	var req ChatUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Title == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No updates provided"})
		return
	}

	meta, err := s.chats.UpdateTitle(c.Request.Context(), c.Param("chat_id"), *req.Title)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse(meta))
}

// DeleteChat removes the chat and its transcript file.
func (s *Server) DeleteChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	if err := s.chats.Delete(c.Request.Context(), chatID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "chat_id": chatID})
}

// SubmitChatQuery records the user message on the chat, then enqueues the
// job carrying the chat ID so the worker can load conversation context.
func (s *Server) SubmitChatQuery(c *gin.Context) {
	chatID := c.Param("chat_id")

	var req ChatQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	if _, err := s.chats.GetMetadata(c.Request.Context(), chatID); err != nil {
		abortWithError(c, err)
		return
	}
	if _, err := s.chats.AppendMessage(c.Request.Context(), chatID, models.ChatMessage{
		Role:    models.RoleUser,
		Content: req.Query,
	}); err != nil {
		abortWithError(c, err)
		return
	}

	jobID, err := s.jobs.Enqueue(c.Request.Context(), req.Query, chatID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.publishQueued(c, jobID)

	c.JSON(http.StatusOK, JobResponse{
		JobID:   jobID,
		Status:  "queued",
		Message: "Query submitted successfully",
	})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
