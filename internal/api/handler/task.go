package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/martin/carsight/internal/api/middleware"
	"github.com/martin/carsight/internal/domain"
	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/service"
)

// TaskHandler handles task submission and retrieval endpoints.
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler creates a new task handler.
// Parameters:
//   - taskService: task service instance.
//
// Returns:
//   - *TaskHandler: initialized handler.
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// createTaskRequest is the accepted body for POST /api/v1/tasks.
// Filters is kept raw so the stored task preserves the caller's JSON verbatim.
type createTaskRequest struct {
	Filters json.RawMessage `json:"filters"`
}

// taskView is the JSON shape returned for a task.
type taskView struct {
	ID           string            `json:"id"`
	Status       domain.TaskStatus `json:"status"`
	Filters      json.RawMessage   `json:"filters"`
	CreatedAt    string            `json:"created_at"`
	CompletedAt  *string           `json:"completed_at"`
	ErrorMessage *string           `json:"error_message"`
}

func newTaskView(task *domain.Task) taskView {
	view := taskView{
		ID:           task.ID,
		Status:       task.Status,
		Filters:      json.RawMessage(task.FilterJSON()),
		CreatedAt:    task.CreatedAt.UTC().Format(time.RFC3339),
		ErrorMessage: task.ErrorMessage,
	}
	if task.CompletedAt != nil {
		completed := task.CompletedAt.UTC().Format(time.RFC3339)
		view.CompletedAt = &completed
	}
	return view
}

// CreateTask handles POST /api/v1/tasks.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	// An empty body means no filters, everything else must be valid JSON
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}
	}

	task, err := h.taskService.SubmitTask(c.Request.Context(), req.Filters)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFilters):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid filters: " + err.Error(),
			})
		case errors.Is(err, service.ErrQueueBusy):
			// The task record survives in failed state so the caller can inspect it
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Work queue is full, please try again later",
				"task":  newTaskView(task),
			})
		default:
			middleware.GetLogger(c).WithError(err).Error("Failed to create task")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      "Failed to create task: " + err.Error(),
				"request_id": logger.GetRequestID(c.Request.Context()),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created",
		"task":    newTaskView(task),
	})
}

// GetTask handles GET /api/v1/tasks/:id.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *TaskHandler) GetTask(c *gin.Context) {
	id := c.Param("id")

	task, records, err := h.taskService.FetchTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Task not found",
			})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to get task")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to get task: " + err.Error(),
			"request_id": logger.GetRequestID(c.Request.Context()),
		})
		return
	}

	response := gin.H{
		"task": newTaskView(task),
	}
	// Materialized records are attached only once the task has completed
	if task.Status == domain.TaskStatusCompleted {
		response["data"] = records
		response["count"] = len(records)
	}

	c.JSON(http.StatusOK, response)
}
