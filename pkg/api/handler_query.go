package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SubmitQuery enqueues a standalone query job. The "queued" status event
// is published immediately so subscribers arriving before a worker picks
// the job up still see progress.
func (s *Server) SubmitQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	jobID, err := s.jobs.Enqueue(c.Request.Context(), req.Query, "")
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

// GetJob returns the job record, including result or error when terminal.
func (s *Server) GetJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) publishQueued(c *gin.Context, jobID string) {
	if err := s.bus.PublishStatus(c.Request.Context(), jobID, "Job queued, waiting for worker..."); err != nil {
		slog.Warn("Failed to publish queued status", "job_id", jobID, "error", err)
	}
}
