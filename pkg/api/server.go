// Package api provides the orchestrator's Control API: HTTP endpoints for
// task/agent management and the WebSocket event stream (spec.md §6).
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/tarsy/pkg/budget"
	"github.com/codeready-toolchain/tarsy/pkg/complexity"
	"github.com/codeready-toolchain/tarsy/pkg/config"
	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/queue"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
	"github.com/codeready-toolchain/tarsy/pkg/store"
	"github.com/codeready-toolchain/tarsy/pkg/sweeper"
)

// Server is the Control API's HTTP server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg         *config.Config
	db          store.Store
	resources   *resourcepool.Pool
	guard       *budget.Guard
	sweeper     *sweeper.Sweeper
	assigner    *queue.Assigner
	assessor    *complexity.Assessor
	dispatch    *events.Dispatcher
	connManager *events.ConnectionManager
}

// NewServer wires every handler to its backing component and registers
// routes. connManager may be nil when the WebSocket gateway is disabled
// (e.g. running against store.MemStore without a Postgres LISTEN/NOTIFY
// channel).
func NewServer(
	cfg *config.Config,
	db store.Store,
	resources *resourcepool.Pool,
	guard *budget.Guard,
	sw *sweeper.Sweeper,
	assigner *queue.Assigner,
	assessor *complexity.Assessor,
	dispatch *events.Dispatcher,
	connManager *events.ConnectionManager,
) *Server {
	e := echo.New()

	s := &Server{
		echo:        e,
		cfg:         cfg,
		db:          db,
		resources:   resources,
		guard:       guard,
		sweeper:     sw,
		assigner:    assigner,
		assessor:    assessor,
		dispatch:    dispatch,
		connManager: connManager,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	if len(s.cfg.CORSOrigins) > 0 {
		s.echo.Use(corsMiddleware(s.cfg.CORSOrigins))
	}

	standardLimiter := newRateLimiter(s.cfg.RateLimitWindow(), s.cfg.RateLimitMax)
	taskCreateLimiter := newRateLimiter(s.cfg.RateLimitWindow(), 20)
	assignLimiter := newRateLimiter(s.cfg.RateLimitWindow(), 20)

	s.echo.Use(standardLimiter.middleware())

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/tasks", s.createTaskHandler, taskCreateLimiter.middleware())
	s.echo.GET("/tasks", s.listTasksHandler)
	s.echo.GET("/tasks/:id", s.getTaskHandler)
	s.echo.PATCH("/tasks/:id", s.updateTaskHandler)
	s.echo.POST("/tasks/:id/complete", s.completeTaskHandler)
	s.echo.DELETE("/tasks/:id", s.deleteTaskHandler)

	s.echo.GET("/agents", s.listAgentsHandler)
	s.echo.PATCH("/agents/:id", s.updateAgentHandler)
	s.echo.POST("/agents/reset-all", s.resetAllAgentsHandler)

	s.echo.POST("/queue/assign", s.assignHandler, assignLimiter.middleware())
	s.echo.GET("/queue/resources", s.resourcesHandler)

	s.echo.GET("/execution-logs/task/:id", s.executionLogsHandler)
	s.echo.GET("/code-reviews/task/:id", s.codeReviewHandler)

	s.echo.GET("/budget", s.budgetHandler)

	if s.connManager != nil {
		s.echo.GET("/ws", s.wsHandler)
	}
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by integration tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{Status: "healthy", Version: healthVersion(), Database: "ok"}
	if s.assigner != nil {
		health := s.poolHealth(ctx)
		resp.WorkerPool = &health
	}
	return c.JSON(http.StatusOK, resp)
}

// poolHealth assembles a queue.PoolHealth snapshot from what the Assigner
// and TaskStore currently expose. The Assigner does not track a live list
// of in-flight runs, so Workers is left empty; ActiveTasks and QueueDepth
// still give an accurate point-in-time read.
func (s *Server) poolHealth(ctx context.Context) queue.PoolHealth {
	pending, err := s.db.ListPendingByPriority(ctx, 0)
	queueDepth := 0
	if err == nil {
		queueDepth = len(pending)
	}
	return queue.PoolHealth{
		IsHealthy:   true,
		QueueDepth:  queueDepth,
		ActiveTasks: s.assigner.ActiveTaskCount(),
		Workers:     []queue.WorkerHealth{},
		LastTick:    time.Now(),
	}
}
