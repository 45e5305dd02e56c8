package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finsight-ai/finsight/pkg/chats"
	"github.com/finsight-ai/finsight/pkg/jobs"
)

// abortWithError maps storage errors to HTTP responses.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, chats.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
	default:
		slog.Error("Unexpected handler error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
