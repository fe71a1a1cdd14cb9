package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// assignHandler handles POST /queue/assign: a manual override of the
// Assigner's automatic matching, for operators steering a specific task to
// a specific agent.
func (s *Server) assignHandler(c *echo.Context) error {
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TaskID == "" || req.AgentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "taskId and agentId are required")
	}

	ctx := c.Request().Context()
	agent, err := s.db.GetAgent(ctx, req.AgentID)
	if err != nil {
		return mapServiceError(err)
	}
	if agent.Status != models.AgentStatusIdle {
		return echo.NewHTTPError(http.StatusConflict, "agent is not idle")
	}

	class := classForAgentKind(agent.Kind)
	if !s.resources.TryAcquire(class, req.TaskID) {
		return echo.NewHTTPError(http.StatusConflict, "resource class at capacity")
	}

	err = s.db.CompareAndSwapStatus(ctx, req.TaskID, models.TaskStatusPending, models.TaskStatusAssigned, func(t *models.Task) {
		now := time.Now()
		t.AssignedAgentID = &req.AgentID
		t.AssignedAt = &now
	})
	if err != nil {
		s.resources.Release(class, req.TaskID)
		return mapServiceError(err)
	}

	agent.Status = models.AgentStatusBusy
	agent.CurrentTaskID = &req.TaskID
	if err := s.db.UpdateAgent(ctx, agent); err != nil {
		return mapServiceError(err)
	}
	s.dispatch.AgentStatus(ctx, agentStatusPayload(agent))

	task, err := s.db.GetTask(ctx, req.TaskID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// resourcesHandler handles GET /queue/resources.
func (s *Server) resourcesHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &ResourcePoolStatus{Classes: s.resources.Status()})
}
