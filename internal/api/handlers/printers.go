package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/larspage/orderdesk/internal/api/middleware"
	"github.com/larspage/orderdesk/internal/core"
)

type PrinterHandler struct {
	registry    *core.Registry
	queue       *core.Queue
	coordinator *core.Coordinator
}

func NewPrinterHandler(registry *core.Registry, queue *core.Queue, coordinator *core.Coordinator) *PrinterHandler {
	return &PrinterHandler{registry: registry, queue: queue, coordinator: coordinator}
}

// requireRestaurant rejects callers who do not manage the restaurant named
// in the path. Printer and print-queue endpoints are staff-only.
func requireRestaurant(c *gin.Context, restaurantID string) (core.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok || (p.Role != core.RoleOwner && p.Role != core.RoleStaff) || p.RestaurantID != restaurantID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "not allowed"})
		return core.Principal{}, false
	}
	return p, true
}

func (h *PrinterHandler) CreatePrinter(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("id")); !ok {
		return
	}

	var in core.PrinterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	printer, err := h.registry.Create(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, printer)
}

func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("id")); !ok {
		return
	}

	printer, err := h.registry.Get(c.Request.Context(), c.Param("id"), c.Param("printerId"))
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, printer)
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("id")); !ok {
		return
	}

	enabledOnly := c.Query("enabled") == "true"
	printers, err := h.registry.List(c.Request.Context(), c.Param("id"), enabledOnly)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, printers)
}

func (h *PrinterHandler) UpdatePrinter(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("id")); !ok {
		return
	}

	var in core.PrinterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	printer, err := h.registry.Update(c.Request.Context(), c.Param("id"), c.Param("printerId"), in)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, printer)
}

func (h *PrinterHandler) DeletePrinter(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("id")); !ok {
		return
	}

	if err := h.registry.Delete(c.Request.Context(), c.Param("id"), c.Param("printerId")); err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "printer deleted"})
}

// TestPrinter probes the printer's transport. A failed probe is a normal
// outcome, not an error: the result carries success=false.
func (h *PrinterHandler) TestPrinter(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("id")); !ok {
		return
	}

	result, err := h.registry.TestConnection(c.Request.Context(), c.Param("id"), c.Param("printerId"))
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type PrintOrderRequest struct {
	PrinterID string         `json:"printer_id" binding:"required"`
	PrintType core.PrintType `json:"print_type" binding:"required"`
}

func (h *PrinterHandler) PrintOrder(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok || (p.Role != core.RoleOwner && p.Role != core.RoleStaff) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "not allowed"})
		return
	}

	var req PrintOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	// The caller's restaurant scopes the printer lookup.
	job, err := h.coordinator.PrintOrder(c.Request.Context(), p.RestaurantID, c.Param("id"), req.PrinterID, req.PrintType)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *PrinterHandler) ListQueue(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("restaurantId")); !ok {
		return
	}

	jobs, err := h.queue.ListQueue(c.Request.Context(), c.Param("restaurantId"))
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *PrinterHandler) RetryJob(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("restaurantId")); !ok {
		return
	}

	job, err := h.queue.Retry(c.Request.Context(), c.Param("restaurantId"), c.Param("jobId"))
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *PrinterHandler) CancelJob(c *gin.Context) {
	if _, ok := requireRestaurant(c, c.Param("restaurantId")); !ok {
		return
	}

	if err := h.queue.Cancel(c.Request.Context(), c.Param("restaurantId"), c.Param("jobId")); err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/printers/restaurants/:id/printers", h.CreatePrinter)
	r.GET("/printers/restaurants/:id/printers", h.ListPrinters)
	r.GET("/printers/restaurants/:id/printers/:printerId", h.GetPrinter)
	r.PUT("/printers/restaurants/:id/printers/:printerId", h.UpdatePrinter)
	r.DELETE("/printers/restaurants/:id/printers/:printerId", h.DeletePrinter)
	r.POST("/printers/restaurants/:id/printers/:printerId/test", h.TestPrinter)
	r.POST("/printers/orders/:id/print", h.PrintOrder)
	r.GET("/printers/print-queue/:restaurantId", h.ListQueue)
	r.POST("/printers/print-queue/:restaurantId/jobs/:jobId/retry", h.RetryJob)
	r.POST("/printers/print-queue/:restaurantId/jobs/:jobId/cancel", h.CancelJob)
}
