package handler

import (
	"net/http"

	"orderflow/internal/service"
	"orderflow/pkg/pagination"
	"orderflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StockHandler struct {
	stockService service.StockService
}

func NewStockHandler(stockService service.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	stock := router.Group("/api/stock")
	{
		stock.GET("", h.ListStock)
		stock.PUT("", h.SetStock)
		stock.GET("/transactions", h.ListTransactions)
	}
}

// ListStock
// @Summary      List stock levels
// @Description  Pages through variant quantities, optionally for one product
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        product_id  query     string  false  "Product ID"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]model.StockLevel}
// @Router       /api/stock [get]
func (h *StockHandler) ListStock(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	levels, total, err := h.stockService.ListStock(c.Request.Context(), actor, c.Query("product_id"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, levels, p.Page, p.Limit, total))
}

// SetStock overwrites the quantity of one variant
// @Summary      Set stock level
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SetStockRequest  true  "Variant and quantity"
// @Success      200      {object}  response.Response{data=model.StockLevel}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/stock [put]
func (h *StockHandler) SetStock(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req service.SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	level, err := h.stockService.SetStock(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, level))
}

// ListTransactions returns the stock card
// @Summary      List inventory transactions
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        order_id    query     string  false  "Order ID"
// @Param        product_id  query     string  false  "Product ID"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]model.InventoryTransaction}
// @Failure      403         {object}  response.Response
// @Router       /api/stock/transactions [get]
func (h *StockHandler) ListTransactions(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	var orderID *uuid.UUID
	if raw := c.Query("order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Invalid order ID")
			return
		}
		orderID = &id
	}

	txs, total, err := h.stockService.ListTransactions(c.Request.Context(), actor, orderID, c.Query("product_id"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, txs, p.Page, p.Limit, total))
}
