package http_api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/translogix/tms/internal/models"
)

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	api := s.router.Group("/api/v1")

	orders := api.Group("/orders")
	orders.POST("", s.createOrder)
	orders.GET("", s.listOrders)
	orders.POST("/dispatch", s.bulkDispatch)
	orders.GET("/:id", s.getOrder)
	orders.PUT("/:id", s.updateOrder)
	orders.DELETE("/:id", s.deleteOrder)
	orders.PUT("/:id/status", s.updateOrderStatus)
	orders.PUT("/:id/driver", s.assignDriver)
	orders.POST("/:id/lock", s.acquireLock(models.ResourceOrders))
	orders.DELETE("/:id/lock", s.releaseLock(models.ResourceOrders))
	orders.GET("/:id/lock", s.lockStatus(models.ResourceOrders))

	handovers := api.Group("/handovers")
	handovers.POST("", s.createHandover)
	handovers.GET("", s.listHandovers)
	handovers.GET("/:id", s.getHandover)
	handovers.PUT("/:id", s.updateHandover)
	handovers.DELETE("/:id", s.deleteHandover)
	handovers.POST("/:id/lock", s.acquireLock(models.ResourceHandovers))
	handovers.DELETE("/:id/lock", s.releaseLock(models.ResourceHandovers))
	handovers.GET("/:id/lock", s.lockStatus(models.ResourceHandovers))

	users := api.Group("/users")
	users.POST("", s.createUser)
	users.GET("/:id", s.getUser)

	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
