package events

import "time"

// Now formats the current time the way every payload's Timestamp field
// expects: RFC3339Nano. Centralized so callers never drift to a different
// layout.
func Now() string {
	return time.Now().Format(time.RFC3339Nano)
}

// TaskCreatedPayload is the payload for task.created events.
// Published when a new Task is accepted, after assessment and routing.
type TaskCreatedPayload struct {
	Type       string  `json:"type"` // always EventTypeTaskCreated
	TaskID     string  `json:"task_id"`
	Title      string  `json:"title"`
	TaskType   string  `json:"task_type"`
	Complexity float64 `json:"complexity"`
	Timestamp  string  `json:"timestamp"` // RFC3339Nano
}

// TaskStatusPayload is the payload for task.status events.
// Published on every Task status transition.
type TaskStatusPayload struct {
	Type             string `json:"type"` // always EventTypeTaskStatus
	TaskID           string `json:"task_id"`
	Status           string `json:"status"`
	AssignedAgentID  string `json:"assigned_agent_id,omitempty"`
	CurrentIteration int    `json:"current_iteration"`
	ErrorCategory    string `json:"error_category,omitempty"`
	Timestamp        string `json:"timestamp"` // RFC3339Nano
}

// AgentStatusPayload is the payload for agent.status events.
// Published when an Agent transitions between idle/busy/paused/offline.
type AgentStatusPayload struct {
	Type          string `json:"type"` // always EventTypeAgentStatus
	AgentID       string `json:"agent_id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
	Timestamp     string `json:"timestamp"` // RFC3339Nano
}

// ReviewCompletedPayload is the payload for review.completed events.
type ReviewCompletedPayload struct {
	Type         string  `json:"type"` // always EventTypeReviewDone
	TaskID       string  `json:"task_id"`
	ReviewID     string  `json:"review_id"`
	QualityScore float64 `json:"quality_score"`
	Approved     bool    `json:"approved"`
	Timestamp    string  `json:"timestamp"` // RFC3339Nano
}

// TaskTimeoutPayload is the payload for task.timeout events, published by
// the Stuck-Task Sweeper when it force-aborts a run.
type TaskTimeoutPayload struct {
	Type         string `json:"type"` // always EventTypeTaskTimeout
	TaskID       string `json:"task_id"`
	AgentID      string `json:"agent_id,omitempty"`
	RunningForMS int64  `json:"running_for_ms"`
	Timestamp    string `json:"timestamp"` // RFC3339Nano
}

// BudgetWarningPayload is the payload for budget.warning transient events,
// fired once per day when daily spend crosses the warning threshold.
type BudgetWarningPayload struct {
	Type            string  `json:"type"` // always EventTypeBudgetWarning
	DailySpentCents int64   `json:"daily_spent_cents"`
	DailyLimitCents int64   `json:"daily_limit_cents"`
	Fraction        float64 `json:"fraction"`
	Timestamp       string  `json:"timestamp"` // RFC3339Nano
}

// BudgetExceededPayload is the payload for budget.exceeded transient events,
// fired once per day when daily spend crosses the daily limit.
type BudgetExceededPayload struct {
	Type            string `json:"type"` // always EventTypeBudgetExceeded
	DailySpentCents int64  `json:"daily_spent_cents"`
	DailyLimitCents int64  `json:"daily_limit_cents"`
	Timestamp       string `json:"timestamp"` // RFC3339Nano
}

// LoopDetectedPayload is the payload for loop.detected transient events.
type LoopDetectedPayload struct {
	Type      string `json:"type"` // always EventTypeLoopDetected
	TaskID    string `json:"task_id"`
	Verdict   string `json:"verdict"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// QueueProgressPayload is the payload for queue.progress transient events,
// broadcast to the global tasks channel for the dashboard's live counters.
type QueueProgressPayload struct {
	Type       string `json:"type"` // always EventTypeQueueProgress
	Pending    int    `json:"pending"`
	Assigned   int    `json:"assigned"`
	InProgress int    `json:"in_progress"`
	Timestamp  string `json:"timestamp"` // RFC3339Nano
}

// ToolCalledPayload is the payload for tool.called transient events,
// mirroring one ExecutionLog entry for live dashboard streaming.
type ToolCalledPayload struct {
	Type           string `json:"type"` // always EventTypeToolCalled
	TaskID         string `json:"task_id"`
	Step           int    `json:"step"`
	Action         string `json:"action"`
	IsLoopDetected bool   `json:"is_loop_detected"`
	Timestamp      string `json:"timestamp"` // RFC3339Nano
}
