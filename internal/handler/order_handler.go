package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"scanorder/internal/export"
	"scanorder/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// OrderHandler handles the committed order endpoints.
type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// List handles GET /api/orders
func (h *OrderHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	orders, err := h.orderService.List(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Get handles GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		RespondError(c, http.StatusNotFound, MsgNotFound)
		return
	}
	detail, err := h.orderService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ExportCSV handles GET /api/export/orders.csv
func (h *OrderHandler) ExportCSV(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	orders, err := h.orderService.ListFull(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	var buf bytes.Buffer
	buf.Write(export.BOM)
	w := export.NewCSVWriter(&buf)
	if err := w.WriteHeader(); err != nil {
		HandleError(c, err)
		return
	}
	if err := w.WriteOrders(orders); err != nil {
		HandleError(c, err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.BuildFilename("sales_orders", "csv", time.Now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportXLSX handles GET /api/export/orders.xlsx
func (h *OrderHandler) ExportXLSX(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	orders, err := h.orderService.ListFull(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, orders); err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.BuildFilename("sales_orders", "xlsx", time.Now())+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// queryLimit parses ?limit=. Zero means the service default.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		RespondError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
