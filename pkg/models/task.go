// Package models contains the typed domain entities shared across the
// orchestrator: Task, Agent, ExecutionLog, and CodeReview, plus the small
// value types (enums, JSON blobs) hung off of them.
package models

import "time"

// TaskType classifies what kind of work a task represents.
type TaskType string

// Recognized task types.
const (
	TaskTypeCode          TaskType = "code"
	TaskTypeTest          TaskType = "test"
	TaskTypeReview        TaskType = "review"
	TaskTypeRefactor      TaskType = "refactor"
	TaskTypeDebug         TaskType = "debug"
	TaskTypeDecomposition TaskType = "decomposition"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

// Recognized task statuses. Completed, Failed, Aborted, and NeedsHuman are
// terminal: once reached, a Task never transitions again.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusAborted    TaskStatus = "aborted"
	TaskStatusNeedsHuman TaskStatus = "needs_human"
)

// IsTerminal reports whether status is one a Task never leaves.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusAborted, TaskStatusNeedsHuman:
		return true
	default:
		return false
	}
}

// ComplexitySource records which mechanism produced a Task's complexity score.
type ComplexitySource string

// Recognized complexity sources.
const (
	ComplexitySourceRouter   ComplexitySource = "router"
	ComplexitySourceHaiku    ComplexitySource = "haiku"
	ComplexitySourceDual     ComplexitySource = "dual"
	ComplexitySourceOverride ComplexitySource = "override"
)

// ErrorCategory classifies why a terminal Task failed. The recognized
// values are the constants below.
type ErrorCategory string

// Recognized error categories (spec.md §7 taxonomy).
const (
	ErrorCategoryTransport     ErrorCategory = "transport"
	ErrorCategoryRateLimit     ErrorCategory = "rate_limit"
	ErrorCategoryBudget        ErrorCategory = "budget"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryLoop          ErrorCategory = "loop"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryStateConflict ErrorCategory = "state_conflict"
	ErrorCategoryBadInput      ErrorCategory = "bad_input"
	ErrorCategoryInternal      ErrorCategory = "internal"
)

// AgentKind is the role an Agent (executor instance) plays.
type AgentKind string

// Recognized agent kinds.
const (
	AgentKindCoder AgentKind = "coder"
	AgentKindQA    AgentKind = "qa"
	AgentKindCTO   AgentKind = "cto"
)

// Tier is the cost/quality class of a model backend a Task is routed to.
type Tier string

// Recognized tiers, cheapest first.
const (
	TierLocal   Tier = "local"
	TierCheap   Tier = "cheap"
	TierMid     Tier = "mid"
	TierPremium Tier = "premium"
)

// Task is the unit of work the orchestrator schedules, routes, and executes.
// See SPEC_FULL.md §3 for the full invariant list.
type Task struct {
	ID          string   `json:"id" gorm:"primaryKey"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TaskType    TaskType `json:"task_type"`
	Priority    int      `json:"priority"` // 0..10

	RequiredAgent *AgentKind `json:"required_agent,omitempty"`
	MaxIterations int        `json:"max_iterations"`
	ParentTaskID  *string    `json:"parent_task_id,omitempty"`

	Complexity          float64          `json:"complexity"` // 1..10, one decimal
	ComplexitySource    ComplexitySource `json:"complexity_source"`
	ComplexityReasoning string           `json:"complexity_reasoning,omitempty"`

	Status TaskStatus `json:"status"`

	AssignedAgentID *string    `json:"assigned_agent_id,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	CurrentIteration int `json:"current_iteration"`

	Result        *TaskResult   `json:"result,omitempty" gorm:"serializer:json"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`

	ValidationCommand string `json:"validation_command,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskResult is the structured payload a completed Task carries. It mirrors
// the Agent Runtime's terminal output shape (see pkg/agentrt).
type TaskResult struct {
	Status           string   `json:"status"` // SUCCESS | SOFT_FAILURE | HARD_FAILURE | UNCERTAIN
	Confidence       float64  `json:"confidence"`
	FilesCreated     []string `json:"files_created,omitempty"`
	CommandsExecuted []string `json:"commands_executed,omitempty"`
	ActualOutput     string   `json:"actual_output,omitempty"`
	FailureReason    string   `json:"failure_reason,omitempty"`
	Suggestions      []string `json:"suggestions,omitempty"`
}

// CreateTaskRequest carries the fields accepted when a caller submits a new Task.
type CreateTaskRequest struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	TaskType          TaskType   `json:"task_type"`
	Priority          *int       `json:"priority,omitempty"`
	MaxIterations     *int       `json:"max_iterations,omitempty"`
	RequiredAgent     *AgentKind `json:"required_agent,omitempty"`
	ValidationCommand string     `json:"validation_command,omitempty"`
	ParentTaskID      *string    `json:"parent_task_id,omitempty"`
}

// TaskFilters narrows a task listing.
type TaskFilters struct {
	Status string
	Agent  string
	Limit  int
}

// CompleteTaskRequest is the body of POST /tasks/:id/complete.
type CompleteTaskRequest struct {
	Success bool        `json:"success"`
	Result  *TaskResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}
