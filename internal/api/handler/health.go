package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/martin/carsight/internal/service"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	taskService *service.TaskService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(taskService *service.TaskService) *HealthHandler {
	return &HealthHandler{
		taskService: taskService,
	}
}

// Health returns the health status of the service including queue pressure
// and worker liveness. A dead worker degrades the status but keeps 200 so
// probes can still read the payload.
func (h *HealthHandler) Health(c *gin.Context) {
	health := h.taskService.Health()

	status := "healthy"
	if !health.WorkerAlive {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"queue_depth":    health.QueueDepth,
		"queue_capacity": health.QueueCapacity,
		"worker_alive":   health.WorkerAlive,
	})
}
