package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finsight-ai/finsight/pkg/metrics"
	"github.com/finsight-ai/finsight/pkg/models"
)

// pingInterval keeps idle SSE connections alive through proxies.
const pingInterval = 5 * time.Second

// StreamEvents serves the job's event stream over SSE: an immediate
// synthetic "connected" event, then replayed history followed by live
// events until the job reaches a terminal event or the client leaves.
func (s *Server) StreamEvents(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := s.jobs.Get(c.Request.Context(), jobID); err != nil {
		abortWithError(c, err)
		return
	}

	sub, err := s.bus.Subscribe(c.Request.Context(), jobID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer sub.Close()

	metrics.SSEConnections.Inc()
	defer metrics.SSEConnections.Dec()

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	writeSSE(c, models.Event{
		Type:  "connected",
		Extra: map[string]any{"job_id": jobID},
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			c.Writer.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			writeSSE(c, ev)
		}
	}
}

func writeSSE(c *gin.Context, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	eventName := ev.Type
	if eventName == "" {
		eventName = "message"
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventName, data)
	c.Writer.Flush()
}
