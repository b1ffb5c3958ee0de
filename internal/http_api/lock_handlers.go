package http_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/translogix/tms/internal/models"
)

// LockRequest represents the optional JSON body for acquiring an edit lock
type LockRequest struct {
	ActionType string `json:"action_type" binding:"omitempty,oneof=EDIT DELETE"`
}

// acquireLock returns a handler for POST /api/v1/<resource>/:id/lock.
// A 409 means another user holds a live claim on the record.
func (s *HTTPServer) acquireLock(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := s.requireCaller(c)
		if !ok {
			return
		}

		var req LockRequest
		// The body is optional; EDIT is assumed when absent.
		_ = c.ShouldBindJSON(&req)
		if req.ActionType == "" {
			req.ActionType = models.ActionEdit
		}

		result := s.tms.AcquireEditLock(c.Request.Context(), resource, c.Param("id"), caller, req.ActionType)
		c.JSON(lockResultCode(result), result)
	}
}

// releaseLock returns a handler for DELETE /api/v1/<resource>/:id/lock.
// Admins may pass ?force=true to clear a claim they do not hold.
func (s *HTTPServer) releaseLock(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := s.requireCaller(c)
		if !ok {
			return
		}

		force := c.Query("force") == "true"
		if force && !s.callerIsAdmin(c, caller) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Only admins may force-release a lock",
			})
			return
		}

		result := s.tms.ReleaseEditLock(c.Request.Context(), resource, c.Param("id"), caller, force)
		status := http.StatusOK
		if !result.Success {
			status = http.StatusConflict
		}
		c.JSON(status, result)
	}
}

// lockStatus returns a handler for GET /api/v1/<resource>/:id/lock.
// The view is advisory; expired claims read as unlocked.
func (s *HTTPServer) lockStatus(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := s.tms.EditLockStatus(c.Request.Context(), resource, c.Param("id"))
		if err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Record not found"})
			} else {
				s.logger.Error("Failed to read lock status", "error", err, "resource", resource)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to read lock status"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"is_locked": status.IsLocked,
			"metadata":  status.Metadata,
		})
	}
}

// callerIsAdmin checks the caller's stored role. The role check runs here
// rather than in the coordinator, which only knows identity equality.
func (s *HTTPServer) callerIsAdmin(c *gin.Context, caller string) bool {
	user, err := s.tms.GetUser(c.Request.Context(), caller)
	if err != nil {
		return false
	}
	return user.Role == models.RoleAdmin
}
