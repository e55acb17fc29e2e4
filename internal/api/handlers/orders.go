package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/larspage/orderdesk/internal/api/middleware"
	"github.com/larspage/orderdesk/internal/core"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeCoreError maps the core error taxonomy onto HTTP statuses.
func writeCoreError(c *gin.Context, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "validation_error",
			"message":    verr.Error(),
			"violations": verr.Violations,
		})
		return
	}

	switch {
	case errors.Is(err, core.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_transition", Message: err.Error()})
	case errors.Is(err, core.ErrInvalidState):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_state", Message: err.Error()})
	case errors.Is(err, core.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "not allowed"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "not found"})
	case errors.Is(err, core.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal error"})
	}
}

type OrderHandler struct {
	machine *core.StatusMachine
}

func NewOrderHandler(machine *core.StatusMachine) *OrderHandler {
	return &OrderHandler{machine: machine}
}

type CreateOrderRequest struct {
	RestaurantID string           `json:"restaurant_id" binding:"required"`
	CustomerID   string           `json:"customer_id"`
	Guest        *core.GuestInfo  `json:"guest_info"`
	Items        []core.OrderItem `json:"items" binding:"required"`
	Notes        string           `json:"notes"`
}

type UpdateStatusRequest struct {
	Status             core.Status `json:"status" binding:"required"`
	EstimatedReadyTime *time.Time  `json:"estimated_ready_time"`
	Reason             string      `json:"reason"`
}

type BulkUpdateStatusRequest struct {
	OrderIDs           []string    `json:"order_ids" binding:"required"`
	Status             core.Status `json:"status" binding:"required"`
	EstimatedReadyTime *time.Time  `json:"estimated_ready_time"`
	Reason             string      `json:"reason"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
	// Guest orders authenticate the cancellation with the contact info
	// given at checkout.
	GuestEmail string `json:"guest_email"`
	GuestPhone string `json:"guest_phone"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	order, err := h.machine.CreateOrder(c.Request.Context(), core.CreateOrderInput{
		RestaurantID: req.RestaurantID,
		CustomerID:   req.CustomerID,
		Guest:        req.Guest,
		Items:        req.Items,
		Notes:        req.Notes,
	})
	if err != nil {
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.machine.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok || (p.Role != core.RoleOwner && p.Role != core.RoleStaff) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "not allowed"})
		return
	}

	restaurantID := c.Param("id")
	if p.RestaurantID != restaurantID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "not allowed"})
		return
	}

	orders, err := h.machine.ListOrders(c.Request.Context(), restaurantID)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	order, err := h.machine.UpdateStatus(c.Request.Context(), p, c.Param("id"), req.Status, req.EstimatedReadyTime, req.Reason)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// BulkUpdateStatus always answers 200: per-order failures are part of the
// result, not an HTTP error.
func (h *OrderHandler) BulkUpdateStatus(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	var req BulkUpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	result := h.machine.BulkUpdateStatus(c.Request.Context(), p, req.OrderIDs, req.Status, req.EstimatedReadyTime, req.Reason)
	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	p, ok := middleware.GetPrincipal(c)
	if !ok {
		// Anonymous callers cancel as guests, identified by the contact
		// info on the order.
		p = core.Principal{
			Role:       core.RoleGuest,
			GuestEmail: req.GuestEmail,
			GuestPhone: req.GuestPhone,
		}
	}

	order, err := h.machine.Cancel(c.Request.Context(), p, c.Param("id"), req.Reason)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup, auth *gin.RouterGroup) {
	// Guests order, look up and cancel without an account; those routes
	// ride the optional-auth group.
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/orders/:id/cancel", h.CancelOrder)
	auth.GET("/restaurants/:id/orders", h.ListOrders)
	auth.PATCH("/orders/:id/status", h.UpdateStatus)
	auth.PATCH("/orders/bulk/status", h.BulkUpdateStatus)
}
