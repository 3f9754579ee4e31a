package handler

import (
	"net/http"

	"orderflow/internal/middleware"
	"orderflow/internal/model"
	"orderflow/internal/repository"
	"orderflow/internal/service"
	"orderflow/pkg/pagination"
	"orderflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireRole(model.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs
// @Summary      Get audit logs
// @Description  Pages through the audit trail, newest first. Top-level management only.
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_id  query     string  false  "Order ID or product ID"
// @Param        actor_id   query     string  false  "Actor UID"
// @Param        action     query     string  false  "Action, e.g. COMPLETE_ORDER"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=[]service.AuditLogResponse}
// @Failure      403        {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	filter := repository.AuditFilter{
		EntityID: c.Query("entity_id"),
		ActorID:  c.Query("actor_id"),
		Action:   c.Query("action"),
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), actor, filter, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, p.Page, p.Limit, total))
}
