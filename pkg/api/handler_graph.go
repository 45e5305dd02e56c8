package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListCompanies returns every company in the knowledge graph.
func (s *Server) ListCompanies(c *gin.Context) {
	companies, err := s.graph.ListCompanies(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

// ListFilings returns the filings linked to a company. Unknown companies
// yield an empty list, mirroring the underlying graph traversal.
func (s *Server) ListFilings(c *gin.Context) {
	companyID := c.Param("company_id")
	filings, err := s.graph.ListFilings(c.Request.Context(), companyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filings": filings, "company_id": companyID})
}
