package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/martin/carsight/internal/logger"
)

// LoggerMiddleware assigns every request a generated id, seeds the request
// context with a scoped logger, and emits start/completion entries. On task
// fetch routes the id path parameter becomes a task_id field, so a single
// grep by task id yields both the API accesses and the worker's processing
// of that task.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := uuid.New().String()

		ctx := log.WithContext(c.Request.Context())
		ctx = logger.SetRequestID(ctx, requestID)
		ctx = logger.SetComponent(ctx, "api")
		if taskID := c.Param("id"); taskID != "" {
			ctx = logger.SetTaskID(ctx, taskID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set("logger", logger.FromContext(ctx))

		// Echo the id back so callers can quote it in bug reports.
		c.Header("X-Request-ID", requestID)

		logger.CtxInfo(ctx, "Request started: method=%s, path=%s, client_ip=%s",
			c.Request.Method, path, c.ClientIP())

		c.Next()

		fullPath := path
		if query := c.Request.URL.RawQuery; query != "" {
			fullPath = fullPath + "?" + query
		}

		logger.With(logger.Fields{
			logger.FieldStatus:     c.Writer.Status(),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			logger.FieldSize:       c.Writer.Size(),
		}).Info(ctx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
	}
}

// GetLogger retrieves the request-scoped logger stashed by LoggerMiddleware.
// Falls back to the context logger so handlers under test without the
// middleware still get a usable logger.
func GetLogger(c *gin.Context) *logger.Logger {
	if l, exists := c.Get("logger"); exists {
		if log, ok := l.(*logger.Logger); ok {
			return log
		}
	}
	return logger.FromContext(c.Request.Context())
}
