package handler

import (
	"net/http"

	"orderflow/internal/model"
	"orderflow/internal/service"
	"orderflow/pkg/pagination"
	"orderflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type StaffHandler struct {
	staffService service.StaffService
}

func NewStaffHandler(staffService service.StaffService) *StaffHandler {
	return &StaffHandler{staffService: staffService}
}

func (h *StaffHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := router.Group("/api/staff")
	{
		staff.GET("", h.ListStaff)
		staff.PUT("/:uid", h.SyncStaff)
	}
}

// ListStaff
// @Summary      List staff
// @Description  Lists roster entries, e.g. candidate pickers for an assignment
// @Tags         staff
// @Security     BearerAuth
// @Produce      json
// @Param        role   query     string  false  "Role filter"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]model.StaffUser}
// @Router       /api/staff [get]
func (h *StaffHandler) ListStaff(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	users, total, err := h.staffService.ListStaff(c.Request.Context(), actor, model.Role(c.Query("role")), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, users, p.Page, p.Limit, total))
}

// SyncStaff mirrors one roster entry from the identity provider
// @Summary      Sync staff
// @Tags         staff
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        uid      path      string                    true  "Staff UID"
// @Param        payload  body      service.SyncStaffRequest  true  "Roster entry"
// @Success      200      {object}  response.Response{data=model.StaffUser}
// @Failure      403      {object}  response.Response
// @Router       /api/staff/{uid} [put]
func (h *StaffHandler) SyncStaff(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req service.SyncStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.staffService.SyncStaff(c.Request.Context(), actor, c.Param("uid"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
