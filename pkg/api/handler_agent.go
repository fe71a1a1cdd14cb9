package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
)

// listAgentsHandler handles GET /agents.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	agents, err := s.db.ListAgents(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, agents)
}

// updateAgentHandler handles PATCH /agents/:id.
func (s *Server) updateAgentHandler(c *echo.Context) error {
	var req models.UpdateAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	agent, err := s.db.GetAgent(ctx, c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	if req.Status != nil {
		agent.Status = *req.Status
	}
	if err := s.db.UpdateAgent(ctx, agent); err != nil {
		return mapServiceError(err)
	}
	s.dispatch.AgentStatus(ctx, agentStatusPayload(agent))
	return c.JSON(http.StatusOK, agent)
}

// resetAllAgentsHandler handles POST /agents/reset-all: an operator escape
// hatch that force-idles every agent, releasing its resource slot. Agents
// stuck busy past their task's lifetime (e.g. after a crash the Sweeper
// hasn't caught yet) are the intended target.
func (s *Server) resetAllAgentsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	agents, err := s.db.ListAgents(ctx)
	if err != nil {
		return mapServiceError(err)
	}

	for i := range agents {
		a := &agents[i]
		if a.Status == models.AgentStatusIdle {
			continue
		}
		if a.CurrentTaskID != nil {
			s.resources.Release(classForAgentKind(a.Kind), *a.CurrentTaskID)
		}
		a.Status = models.AgentStatusIdle
		a.CurrentTaskID = nil
		if err := s.db.UpdateAgent(ctx, a); err != nil {
			return mapServiceError(err)
		}
		s.dispatch.AgentStatus(ctx, agentStatusPayload(a))
	}
	return c.NoContent(http.StatusNoContent)
}

func classForAgentKind(kind models.AgentKind) string {
	if kind == models.AgentKindCoder {
		return resourcepool.ClassLocal
	}
	return resourcepool.ClassPremiumCloud
}
