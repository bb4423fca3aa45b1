package handlers

import (
	"net/http"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/middleware"
	"mmh_backend/internal/services"
	"mmh_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	*BaseHandler
	orderService services.OrderService
}

func NewOrderHandler(base *BaseHandler, orderService services.OrderService) *OrderHandler {
	return &OrderHandler{
		BaseHandler:  base,
		orderService: orderService,
	}
}

func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup, authMw gin.HandlerFunc) {
	orders := rg.Group("/orders", authMw, middleware.RequirePermission(auth.PermOrdersRead))
	{
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.GET("/number/:number", h.GetByNumber)
		orders.POST("", middleware.RequirePermission(auth.PermOrdersCreate), h.Create)
		orders.PUT("/:id", middleware.RequirePermission(auth.PermOrdersUpdate), h.Update)
		orders.DELETE("/:id", middleware.RequirePermission(auth.PermOrdersUpdate), h.Delete)
		orders.PUT("/:id/status", middleware.RequirePermission(auth.PermOrdersStatus), h.ChangeStatus)
		orders.POST("/:id/close", middleware.RequirePermission(auth.PermOrdersStatus), h.Close)
	}
}

// List godoc
// @Summary List orders
// @Description Agencies see orders they placed, media users orders on their offers.
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param agencyUserId query string false "Buyer"
// @Param mediaUserId query string false "Seller"
// @Param offerId query string false "Offer"
// @Param status query string false "new, in_progress or closed"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.PaginatedResponse
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var filter dto.OrderFilter
	if !h.BindAndValidate_Query(c, &filter) {
		return
	}
	normalizePage(&filter.Page, &filter.PageSize)

	orders, total, err := h.orderService.List(c.Request.Context(), h.GetDB(c), actor, &filter)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(dto.NewOrderResponses(orders), total, filter.Page, filter.PageSize))
}

// Get godoc
// @Summary Get an order
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), h.GetDB(c), actor, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

// GetByNumber godoc
// @Summary Get an order by its human-readable number
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param number path string true "Order number, e.g. MMH-2026-000001"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /orders/number/{number} [get]
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetByNumber(c.Request.Context(), h.GetDB(c), actor, c.Param("number"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

// Create godoc
// @Summary Place an order
// @Description Exactly one of quantityUnits and impressions must match the offer's pricing model.
// @Tags orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateOrderRequest true "Order"
// @Success 201 {object} dto.OrderResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.CreateOrderRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), h.GetDB(c), actor, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewOrderResponse(order))
}

// Update godoc
// @Summary Change preferred dates or note
// @Tags orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body dto.UpdateOrderRequest true "Changes"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /orders/{id} [put]
func (h *OrderHandler) Update(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.UpdateOrderRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	order, err := h.orderService.Update(c.Request.Context(), h.GetDB(c), actor, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

// Delete godoc
// @Summary Delete an order
// @Tags orders
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 204
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /orders/{id} [delete]
func (h *OrderHandler) Delete(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	if err := h.orderService.Delete(c.Request.Context(), h.GetDB(c), actor, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ChangeStatus godoc
// @Summary Move an order between statuses
// @Description Setting status=closed is the same as POST /orders/{id}/close.
// @Tags orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body dto.ChangeOrderStatusRequest true "Status"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /orders/{id}/status [put]
func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.ChangeOrderStatusRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	order, err := h.orderService.ChangeStatus(c.Request.Context(), h.GetDB(c), actor, c.Param("id"), req.Status)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

// Close godoc
// @Summary Close an order and record commission
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /orders/{id}/close [post]
func (h *OrderHandler) Close(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	order, err := h.orderService.Close(c.Request.Context(), h.GetDB(c), actor, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}
