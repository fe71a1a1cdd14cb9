package models

import "time"

// AgentStatus is the lifecycle state of an executor instance.
type AgentStatus string

// Recognized agent statuses.
const (
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusPaused  AgentStatus = "paused"
	AgentStatusOffline AgentStatus = "offline"
)

// Agent is one executor instance capable of driving a Task through the
// Agent Runtime. At most one Task is assigned to an Agent at a time:
// CurrentTaskID != nil iff Status == AgentStatusBusy.
type Agent struct {
	ID     string      `json:"id" gorm:"primaryKey"`
	Kind   AgentKind   `json:"kind"`
	Status AgentStatus `json:"status"`

	CurrentTaskID *string `json:"current_task_id,omitempty"`

	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateAgentRequest is the body of PATCH /agents/:id.
type UpdateAgentRequest struct {
	Status *AgentStatus `json:"status,omitempty"`
}
