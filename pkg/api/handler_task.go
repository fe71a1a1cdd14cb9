package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

const (
	defaultPriority      = 0
	defaultMaxIterations = 5
)

// createTaskHandler handles POST /tasks.
func (s *Server) createTaskHandler(c *echo.Context) error {
	var req models.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" || req.TaskType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and task_type are required")
	}

	priority := defaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	maxIterations := defaultMaxIterations
	if s.cfg.DefaultMaxIterations > 0 {
		maxIterations = s.cfg.DefaultMaxIterations
	}
	if req.MaxIterations != nil {
		maxIterations = *req.MaxIterations
	}

	task := &models.Task{
		ID:                uuid.NewString(),
		Title:             req.Title,
		Description:       req.Description,
		TaskType:          req.TaskType,
		Priority:          priority,
		RequiredAgent:     req.RequiredAgent,
		MaxIterations:     maxIterations,
		ParentTaskID:      req.ParentTaskID,
		ValidationCommand: req.ValidationCommand,
		Status:            models.TaskStatusPending,
	}

	assessment := s.assessor.Assess(c.Request().Context(), complexityInput(task))
	task.Complexity = assessment.Complexity
	task.ComplexitySource = assessment.Source
	task.ComplexityReasoning = assessment.Reasoning

	if err := s.db.CreateTask(c.Request().Context(), task); err != nil {
		return mapServiceError(err)
	}

	s.dispatch.TaskCreated(c.Request().Context(), taskCreatedPayload(task))

	return c.JSON(http.StatusCreated, task)
}

// listTasksHandler handles GET /tasks.
func (s *Server) listTasksHandler(c *echo.Context) error {
	filters := models.TaskFilters{
		Status: c.QueryParam("status"),
		Agent:  c.QueryParam("agent"),
	}
	if limit := c.QueryParam("limit"); limit != "" {
		filters.Limit = parseLimit(limit)
	}
	tasks, err := s.db.ListTasks(c.Request().Context(), filters)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// getTaskHandler handles GET /tasks/:id.
func (s *Server) getTaskHandler(c *echo.Context) error {
	task, err := s.db.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// updateTaskRequest carries the restricted set of fields a caller may patch
// directly, per spec.md §6.1 ("partial update (restricted fields)").
type updateTaskRequest struct {
	Priority          *int    `json:"priority,omitempty"`
	ValidationCommand *string `json:"validation_command,omitempty"`
}

// updateTaskHandler handles PATCH /tasks/:id.
func (s *Server) updateTaskHandler(c *echo.Context) error {
	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := s.db.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	if task.Status.IsTerminal() {
		return echo.NewHTTPError(http.StatusConflict, "task is in a terminal state")
	}

	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.ValidationCommand != nil {
		task.ValidationCommand = *req.ValidationCommand
	}

	if err := s.db.UpdateTask(c.Request().Context(), task); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// completeTaskHandler handles POST /tasks/:id/complete — a manual terminal
// transition, distinct from the Executor's own finalize path.
func (s *Server) completeTaskHandler(c *echo.Context) error {
	var req models.CompleteTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id := c.Param("id")
	err := s.db.CompareAndSwapStatus(c.Request().Context(), id, models.TaskStatusInProgress, terminalStatus(req.Success), func(t *models.Task) {
		t.Result = req.Result
		t.ErrorMessage = req.Error
		now := timeNow()
		t.CompletedAt = &now
	})
	if err != nil {
		return mapServiceError(err)
	}

	task, err := s.db.GetTask(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// deleteTaskHandler handles DELETE /tasks/:id. Only pending (non-terminal,
// unassigned) tasks may be deleted, per spec.md §6.1. The row is kept: the
// task moves to aborted with error category bad_input.
func (s *Server) deleteTaskHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	task, err := s.db.GetTask(ctx, id)
	if err != nil {
		return mapServiceError(err)
	}
	if task.Status.IsTerminal() || task.Status != models.TaskStatusPending {
		return echo.NewHTTPError(http.StatusConflict, "task must be pending and unassigned to delete")
	}

	err = s.db.CompareAndSwapStatus(ctx, id, models.TaskStatusPending, models.TaskStatusAborted, func(t *models.Task) {
		t.ErrorCategory = models.ErrorCategoryBadInput
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func terminalStatus(success bool) models.TaskStatus {
	if success {
		return models.TaskStatusCompleted
	}
	return models.TaskStatusFailed
}

func parseLimit(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
