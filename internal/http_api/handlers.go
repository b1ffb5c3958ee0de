package http_api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/translogix/tms/internal/models"
)

// OrderRequest represents the JSON body for creating or updating an order
type OrderRequest struct {
	CustomerName string `json:"customer_name" binding:"required"`
	Origin       string `json:"origin" binding:"required"`
	Destination  string `json:"destination" binding:"required"`
	CargoNote    string `json:"cargo_note"`
	ScheduledAt  int64  `json:"scheduled_at"`
}

// StatusRequest represents the JSON body for a status transition
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING DISPATCHED IN_TRANSIT DELIVERED CANCELLED"`
}

// DriverRequest represents the JSON body for a driver assignment
type DriverRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// DispatchRequest represents the JSON body for a bulk dispatch
type DispatchRequest struct {
	OrderIDs []string `json:"order_ids" binding:"required,min=1"`
	DriverID string   `json:"driver_id" binding:"required"`
}

// HandoverRequest represents the JSON body for creating or updating a handover note
type HandoverRequest struct {
	Shift  string `json:"shift" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body"`
	Pinned bool   `json:"pinned"`
}

// UserRequest represents the JSON body for creating a user
type UserRequest struct {
	ID             string `json:"id" binding:"required"`
	DisplayName    string `json:"display_name" binding:"required"`
	Role           string `json:"role" binding:"omitempty,oneof=admin staff driver"`
	TelegramChatID string `json:"telegram_chat_id"`
	Email          string `json:"email" binding:"omitempty,email"`
}

// callerID returns the authenticated user id injected by the auth layer.
func callerID(c *gin.Context) string {
	return c.GetHeader("X-User-Id")
}

// requireCaller aborts with 401 when no caller identity is present.
func (s *HTTPServer) requireCaller(c *gin.Context) (string, bool) {
	caller := callerID(c)
	if caller == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "X-User-Id header is required",
		})
		return "", false
	}
	return caller, true
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// lockResultCode maps a lock outcome to an HTTP status.
func lockResultCode(result models.LockResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case models.ErrKindNotFound:
		return http.StatusNotFound
	case models.ErrKindLockConflict:
		return http.StatusConflict
	case models.ErrKindServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// createOrder is a handler for POST /api/v1/orders.
func (s *HTTPServer) createOrder(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	order := &models.DashboardOrder{
		CustomerName: req.CustomerName,
		Origin:       req.Origin,
		Destination:  req.Destination,
		CargoNote:    req.CargoNote,
		ScheduledAt:  req.ScheduledAt,
		UpdatedBy:    caller,
	}
	if err := s.tms.CreateOrder(c.Request.Context(), order); err != nil {
		s.logger.Error("Failed to create order", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to create order",
		})
		return
	}

	s.logger.Info("Order created", "id", order.ID, "by", caller)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"order":   order,
	})
}

// listOrders is a handler for GET /api/v1/orders.
func (s *HTTPServer) listOrders(c *gin.Context) {
	orders, err := s.tms.ListOrders(c.Request.Context(), c.Query("status"), queryLimit(c))
	if err != nil {
		s.logger.Error("Failed to list orders", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list orders",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
	})
}

// getOrder is a handler for GET /api/v1/orders/:id.
func (s *HTTPServer) getOrder(c *gin.Context) {
	order, err := s.tms.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Order not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get order"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   order,
	})
}

// updateOrder is a handler for PUT /api/v1/orders/:id. The caller must hold
// (or be able to take) the edit claim on the record.
func (s *HTTPServer) updateOrder(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	result := s.tms.UpdateOrder(c.Request.Context(), caller, &models.DashboardOrder{
		ID:           c.Param("id"),
		CustomerName: req.CustomerName,
		Origin:       req.Origin,
		Destination:  req.Destination,
		CargoNote:    req.CargoNote,
		ScheduledAt:  req.ScheduledAt,
	})
	c.JSON(lockResultCode(result), result)
}

// updateOrderStatus is a handler for PUT /api/v1/orders/:id/status.
func (s *HTTPServer) updateOrderStatus(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	result := s.tms.UpdateOrderStatus(c.Request.Context(), caller, c.Param("id"), req.Status)
	c.JSON(lockResultCode(result), result)
}

// assignDriver is a handler for PUT /api/v1/orders/:id/driver.
func (s *HTTPServer) assignDriver(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	var req DriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	result := s.tms.AssignDriver(c.Request.Context(), caller, c.Param("id"), req.DriverID)
	c.JSON(lockResultCode(result), result)
}

// deleteOrder is a handler for DELETE /api/v1/orders/:id.
func (s *HTTPServer) deleteOrder(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	result := s.tms.DeleteOrder(c.Request.Context(), caller, c.Param("id"))
	c.JSON(lockResultCode(result), result)
}

// bulkDispatch is a handler for POST /api/v1/orders/dispatch. All target
// orders are claimed up front; a single contended order fails the batch.
func (s *HTTPServer) bulkDispatch(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	result := s.tms.BulkDispatch(c.Request.Context(), caller, req.DriverID, req.OrderIDs)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

// createHandover is a handler for POST /api/v1/handovers.
func (s *HTTPServer) createHandover(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	var req HandoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	note := &models.HandoverNote{
		AuthorID:  caller,
		Shift:     req.Shift,
		Title:     req.Title,
		Body:      req.Body,
		Pinned:    req.Pinned,
		UpdatedBy: caller,
	}
	if err := s.tms.CreateHandover(c.Request.Context(), note); err != nil {
		s.logger.Error("Failed to create handover note", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to create handover note",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"handover": note,
	})
}

// listHandovers is a handler for GET /api/v1/handovers.
func (s *HTTPServer) listHandovers(c *gin.Context) {
	pinnedOnly := c.Query("pinned") == "true"
	notes, err := s.tms.ListHandovers(c.Request.Context(), pinnedOnly, queryLimit(c))
	if err != nil {
		s.logger.Error("Failed to list handover notes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list handover notes",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"handovers": notes,
	})
}

// getHandover is a handler for GET /api/v1/handovers/:id.
func (s *HTTPServer) getHandover(c *gin.Context) {
	note, err := s.tms.GetHandover(c.Request.Context(), c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Handover note not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get handover note"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"handover": note,
	})
}

// updateHandover is a handler for PUT /api/v1/handovers/:id.
func (s *HTTPServer) updateHandover(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	var req HandoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	result := s.tms.UpdateHandover(c.Request.Context(), caller, &models.HandoverNote{
		ID:     c.Param("id"),
		Shift:  req.Shift,
		Title:  req.Title,
		Body:   req.Body,
		Pinned: req.Pinned,
	})
	c.JSON(lockResultCode(result), result)
}

// deleteHandover is a handler for DELETE /api/v1/handovers/:id.
func (s *HTTPServer) deleteHandover(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok {
		return
	}

	result := s.tms.DeleteHandover(c.Request.Context(), caller, c.Param("id"))
	c.JSON(lockResultCode(result), result)
}

// createUser is a handler for POST /api/v1/users.
func (s *HTTPServer) createUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	user := &models.User{
		ID:             req.ID,
		DisplayName:    req.DisplayName,
		Role:           req.Role,
		TelegramChatID: req.TelegramChatID,
		Email:          req.Email,
	}
	if err := s.tms.CreateUser(c.Request.Context(), user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "id", req.ID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to create user",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    user,
	})
}

// getUser is a handler for GET /api/v1/users/:id.
func (s *HTTPServer) getUser(c *gin.Context) {
	user, err := s.tms.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get user"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

// health is a handler for GET /healthz.
func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
