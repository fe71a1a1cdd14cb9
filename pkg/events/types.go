// Package events provides real-time event delivery for the orchestrator: an
// in-process Event Bus (bus.go) for internal subscribers (Assigner, Sweeper,
// Budget Guard, Review Trigger), and a WebSocket + PostgreSQL NOTIFY/LISTEN
// gateway (manager.go, listener.go, publisher.go) for the external dashboard,
// mirrored across pods.
package events

// Persistent event types (stored in DB + NOTIFY).
const (
	EventTypeTaskCreated = "task.created"
	EventTypeTaskStatus  = "task.status"
	EventTypeAgentStatus = "agent.status"
	EventTypeReviewDone  = "review.completed"
	EventTypeTaskTimeout = "task.timeout"
)

// Transient event types (NOTIFY only, no DB persistence). tool_called is
// transient because the ExecutionLog table is already the durable record of
// each tool call (§4.12); the event is a live notification only.
const (
	EventTypeBudgetWarning  = "budget.warning"
	EventTypeBudgetExceeded = "budget.exceeded"
	EventTypeLoopDetected   = "loop.detected"
	EventTypeQueueProgress  = "queue.progress"
	EventTypeToolCalled     = "tool.called"
)

// GlobalTasksChannel is the channel for orchestrator-wide task status
// events. The task list dashboard subscribes to this for real-time updates.
const GlobalTasksChannel = "tasks"

// TaskChannel returns the channel name for a specific task's events.
// Format: "task:{task_id}"
func TaskChannel(taskID string) string {
	return "task:" + taskID
}

// GlobalAgentsChannel is the channel for agent status events (idle/busy
// transitions), subscribed to by the fleet status dashboard.
const GlobalAgentsChannel = "agents"

// ClientMessage is the JSON structure for client -> server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`       // Channel name (e.g., "task:abc-123")
	LastEventID *int   `json:"last_event_id,omitempty"` // For catchup
}
