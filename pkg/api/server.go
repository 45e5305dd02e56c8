// Package api is the HTTP gateway: query submission, job status, SSE
// event streaming, knowledge-graph reads, and chat management.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsight-ai/finsight/pkg/chats"
	"github.com/finsight-ai/finsight/pkg/events"
	"github.com/finsight-ai/finsight/pkg/jobs"
	"github.com/finsight-ai/finsight/pkg/metrics"
)

// GraphReader is the knowledge-graph surface the read endpoints need.
// *graph.Client is the production implementation.
type GraphReader interface {
	ListCompanies(ctx context.Context) ([]map[string]any, error)
	ListFilings(ctx context.Context, companyID string) ([]map[string]any, error)
	Health(ctx context.Context) error
}

// Server holds the gateway's collaborators.
type Server struct {
	jobs           *jobs.Store
	bus            *events.Publisher
	chats          *chats.Store
	graph          GraphReader
	allowedOrigins []string
}

// NewServer creates the API server.
func NewServer(jobStore *jobs.Store, bus *events.Publisher, chatStore *chats.Store, graph GraphReader, allowedOrigins []string) *Server {
	return &Server{
		jobs:           jobStore,
		bus:            bus,
		chats:          chatStore,
		graph:          graph,
		allowedOrigins: allowedOrigins,
	}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/query", s.SubmitQuery)
		apiGroup.GET("/jobs/:job_id", s.GetJob)
		apiGroup.GET("/events/:job_id", s.StreamEvents)

		apiGroup.GET("/companies", s.ListCompanies)
		apiGroup.GET("/filings/:company_id", s.ListFilings)

		apiGroup.POST("/chats", s.CreateChat)
		apiGroup.GET("/chats", s.ListChats)
		apiGroup.GET("/chats/:chat_id", s.GetChat)
		apiGroup.PUT("/chats/:chat_id", s.UpdateChat)
		apiGroup.DELETE("/chats/:chat_id", s.DeleteChat)
		apiGroup.POST("/chats/:chat_id/query", s.SubmitChatQuery)
	}

	return r
}

// Health reports gateway liveness plus the state of its backends. A
// failing backend degrades the report without failing the endpoint; the
// gateway itself is still serving.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	components := gin.H{}

	if err := s.jobs.Ping(ctx); err != nil {
		status = "degraded"
		components["redis"] = "unhealthy"
	} else {
		components["redis"] = "healthy"
	}

	if s.graph != nil {
		if err := s.graph.Health(ctx); err != nil {
			status = "degraded"
			components["arangodb"] = "unhealthy"
		} else {
			components["arangodb"] = "healthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "components": components})
}
