package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req auditdomain.ListAuditLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, newValidationError("query", "invalid_query", "invalid query parameters"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
