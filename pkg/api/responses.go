package api

import (
	"github.com/codeready-toolchain/tarsy/pkg/budget"
	"github.com/codeready-toolchain/tarsy/pkg/queue"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
	"github.com/codeready-toolchain/tarsy/pkg/version"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Database   string            `json:"database"`
	WorkerPool *queue.PoolHealth `json:"worker_pool,omitempty"`
}

func healthVersion() string {
	return version.Full()
}

// ResourcePoolStatus is the body of GET /queue/resources.
type ResourcePoolStatus struct {
	Classes map[string]resourcepool.ClassStatus `json:"classes"`
}

// BudgetStatus is the body of GET /budget.
type BudgetStatus struct {
	budget.Snapshot
}

// ErrorResponse is the {error, message, details?} error body shape. No
// handler in this package renders it: handlers return *echo.HTTPError
// values, which echo's error handler formats.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// AssignRequest is the body of POST /queue/assign.
type AssignRequest struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId"`
}
