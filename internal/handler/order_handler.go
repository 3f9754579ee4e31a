package handler

import (
	"context"
	"net/http"
	"strconv"

	"orderflow/internal/model"
	"orderflow/internal/service"
	"orderflow/pkg/pagination"
	"orderflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VersionRequest is the optional body of action endpoints. A non-zero
// expected_version turns the call into a compare-and-set.
type VersionRequest struct {
	ExpectedVersion int `json:"expected_version"`
}

type PickRequest struct {
	Picked          bool `json:"picked"`
	ExpectedVersion int  `json:"expected_version"`
}

type RevisionRequest struct {
	Note            string `json:"note"`
	ExpectedVersion int    `json:"expected_version"`
}

type OrderHandler struct {
	orders      service.OrderService
	assignments service.AssignmentService
}

func NewOrderHandler(orders service.OrderService, assignments service.AssignmentService) *OrderHandler {
	return &OrderHandler{orders: orders, assignments: assignments}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/api/orders")
	{
		orders.GET("", h.ListOrders)
		orders.GET("/stats", h.GetStats)
		orders.POST("", h.CreateOrder)
		orders.GET("/:id", h.GetOrder)
		orders.PUT("/:id", h.UpdateOrder)
		orders.DELETE("/:id", h.DeleteOrder)
		orders.POST("/:id/cancel", h.CancelOrder)
		orders.POST("/:id/assign-warehouse", h.AssignWarehouse)
		orders.POST("/:id/assign-picker", h.AssignPicker)
		orders.POST("/:id/start", h.StartPicking)
		orders.PUT("/:id/items/:index/pick", h.PickItem)
		orders.POST("/:id/complete", h.CompleteOrder)
		orders.POST("/:id/revision", h.ReportRevision)
		orders.POST("/:id/ship", h.ShipOrder)
	}
}

func orderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindOptional binds a JSON body when one was sent
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// ListOrders returns the caller's role-scoped order view
// @Summary      List orders
// @Description  Pages through the orders visible to the caller, most recently updated first
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]model.Order}
// @Failure      400     {object}  response.Response
// @Failure      503     {object}  response.Response
// @Router       /api/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	orders, total, err := h.orders.ListOrders(c.Request.Context(), actor, service.ListOrdersQuery{
		Status: model.OrderStatus(c.Query("status")),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, orders, p.Page, p.Limit, total))
}

// GetStats counts the caller's visible orders per status
// @Summary      Order stats
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]repository.StatusCount}
// @Router       /api/orders/stats [get]
func (h *OrderHandler) GetStats(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	stats, err := h.orders.Stats(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// CreateOrder
// @Summary      Create order
// @Description  Creates an order owned by the caller. Confirmed unless draft is set.
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderRequest  true  "Order"
// @Success      201      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// GetOrder returns one order with the actions the caller may take on it
// @Summary      Get order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderDetail}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	detail, err := h.orders.GetOrder(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// UpdateOrder is the edit-save of the creator or their manager
// @Summary      Update order
// @Description  Replaces items and customer fields, recomputes the total and re-confirms the order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Order ID"
// @Param        payload  body      service.UpdateOrderRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// DeleteOrder
// @Summary      Delete order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id                path      string  true   "Order ID"
// @Param        expected_version  query     int     false  "Reject unless the order is at this version"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	version, _ := strconv.Atoi(c.Query("expected_version"))

	if err := h.orders.DeleteOrder(c.Request.Context(), actor, id, version); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Order deleted"}))
}

// CancelOrder
// @Summary      Cancel order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string          true   "Order ID"
// @Param        payload  body      VersionRequest  false  "Expected version"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	h.versionAction(c, h.orders.CancelOrder)
}

// StartPicking
// @Summary      Start picking
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string          true   "Order ID"
// @Param        payload  body      VersionRequest  false  "Expected version"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/start [post]
func (h *OrderHandler) StartPicking(c *gin.Context) {
	h.versionAction(c, h.orders.StartPicking)
}

// CompleteOrder takes the items out of stock and closes picking
// @Summary      Complete order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string          true   "Order ID"
// @Param        payload  body      VersionRequest  false  "Expected version"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/orders/{id}/complete [post]
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	h.versionAction(c, h.orders.CompleteOrder)
}

// ShipOrder
// @Summary      Ship order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string          true   "Order ID"
// @Param        payload  body      VersionRequest  false  "Expected version"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/ship [post]
func (h *OrderHandler) ShipOrder(c *gin.Context) {
	h.versionAction(c, h.orders.ShipOrder)
}

type versionedCall func(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error)

func (h *OrderHandler) versionAction(c *gin.Context, call versionedCall) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req VersionRequest
	if !bindOptional(c, &req) {
		return
	}

	order, err := call(c.Request.Context(), actor, id, req.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// AssignWarehouse hands the order to a warehouse manager
// @Summary      Assign warehouse manager
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Order ID"
// @Param        payload  body      service.AssignRequest  true  "Assignee"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/assign-warehouse [post]
func (h *OrderHandler) AssignWarehouse(c *gin.Context) {
	h.assign(c, h.assignments.AssignToWarehouseManager)
}

// AssignPicker hands the order to a picker, replacing any previous one
// @Summary      Assign picker
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Order ID"
// @Param        payload  body      service.AssignRequest  true  "Assignee"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/assign-picker [post]
func (h *OrderHandler) AssignPicker(c *gin.Context) {
	h.assign(c, h.assignments.AssignToPicker)
}

type assignCall func(ctx context.Context, actor model.Actor, id uuid.UUID, req service.AssignRequest) (*model.Order, error)

func (h *OrderHandler) assign(c *gin.Context, call assignCall) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req service.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	order, err := call(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// PickItem checks an item off (or back on) the pick list
// @Summary      Mark item picked
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string       true  "Order ID"
// @Param        index    path      int          true  "Item index"
// @Param        payload  body      PickRequest  true  "Pick mark"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/items/{index}/pick [put]
func (h *OrderHandler) PickItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "Invalid item index")
		return
	}
	var req PickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	order, err := h.orders.MarkItemPicked(c.Request.Context(), actor, id, index, req.Picked, req.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// ReportRevision sends the order back to sales with a note
// @Summary      Request revision
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "Order ID"
// @Param        payload  body      RevisionRequest  true  "Revision note"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/revision [post]
func (h *OrderHandler) ReportRevision(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req RevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	order, err := h.orders.ReportRevision(c.Request.Context(), actor, id, req.Note, req.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}
