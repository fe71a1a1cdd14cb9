// Package store defines the persistence contract the orchestrator depends
// on. pkg/pgstore provides the Postgres/GORM implementation; any
// transactional typed key-store could satisfy it per SPEC_FULL.md §4.12.
package store

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// Sentinel errors for store operations, mirrored after pkg/queue's
// ErrNoTasksAvailable / ErrAtCapacity pattern.
var (
	// ErrNotFound indicates no row exists for the given ID.
	ErrNotFound = errors.New("store: not found")

	// ErrCASConflict indicates a compare-and-set update lost a race: the
	// row's status no longer matched the expected value.
	ErrCASConflict = errors.New("store: compare-and-set conflict")
)

// TaskStore is the Task persistence contract. All status transitions go
// through CompareAndSwapStatus to keep the Sweeper and Executor from
// racing each other into split-brain (spec.md §5).
type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filters models.TaskFilters) ([]models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error

	// CompareAndSwapStatus atomically transitions a task's status from
	// expected to next, applying mutate to the row in the same write iff
	// the current status still equals expected. Returns ErrCASConflict if
	// another writer moved the status first, ErrNotFound if the task is
	// gone.
	CompareAndSwapStatus(ctx context.Context, id string, expected, next models.TaskStatus, mutate func(*models.Task)) error

	// ListPendingByPriority returns pending tasks ordered by
	// (priority desc, created_at asc), the Assigner's scan order.
	ListPendingByPriority(ctx context.Context, limit int) ([]models.Task, error)
}

// AgentStore is the Agent persistence contract.
type AgentStore interface {
	CreateAgent(ctx context.Context, a *models.Agent) error
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
	UpdateAgent(ctx context.Context, a *models.Agent) error
	IdleAgentsByKind(ctx context.Context, kind models.AgentKind) ([]models.Agent, error)
}

// ExecutionLogStore is the append-only log persistence contract. Entries
// for one task are totally ordered by Step; callers pass Step=0 to mean
// "append at the next sequence number".
type ExecutionLogStore interface {
	AppendLog(ctx context.Context, entry *models.ExecutionLog) error
	ListLogsForTask(ctx context.Context, taskID string) ([]models.ExecutionLog, error)
}

// CodeReviewStore is the CodeReview persistence contract.
type CodeReviewStore interface {
	CreateReview(ctx context.Context, r *models.CodeReview) error
	GetReviewForTask(ctx context.Context, taskID string) (*models.CodeReview, error)
	UpdateReview(ctx context.Context, r *models.CodeReview) error
}

// Store bundles every entity's persistence contract behind one handle,
// mirroring how the teacher's services accept a single *ent.Client.
type Store interface {
	TaskStore
	AgentStore
	ExecutionLogStore
	CodeReviewStore
}
