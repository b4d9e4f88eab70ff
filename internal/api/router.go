package api

import (
	"github.com/gin-gonic/gin"
	"github.com/martin/carsight/internal/api/handler"
	"github.com/martin/carsight/internal/api/middleware"
	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	taskService *service.TaskService,
	corsConfig middleware.CORSConfig,
	mode string,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(corsConfig))

	// Create handlers
	healthHandler := handler.NewHealthHandler(taskService)
	taskHandler := handler.NewTaskHandler(taskService)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/tasks", taskHandler.CreateTask)
		v1.GET("/tasks/:id", taskHandler.GetTask)
		v1.GET("/health", healthHandler.Health)
	}

	return r
}
