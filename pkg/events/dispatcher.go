package events

import (
	"context"
	"log/slog"
)

// Dispatcher is the single entry point the Assigner, Executor, Sweeper, and
// Review Trigger publish through. It fans each domain event out to both the
// in-process Bus (cheap, same-process subscribers) and the durable
// EventPublisher (Postgres persist + NOTIFY, which the WebSocket gateway in
// manager.go ultimately serves to remote clients) — matching the "Event
// Bus: fan-out to in-process subscribers + gateway" contract.
//
// Publisher failures are logged, not returned: domain state never depends
// on event delivery succeeding.
type Dispatcher struct {
	bus       *Bus
	publisher DurablePublisher
}

// DurablePublisher is the subset of *EventPublisher's methods Dispatcher
// needs. Exported and accepted directly (rather than the concrete
// *EventPublisher) so callers in other packages' tests can substitute a
// fake instead of standing up a real *sql.DB.
type DurablePublisher interface {
	PublishTaskCreated(ctx context.Context, taskID string, payload TaskCreatedPayload) error
	PublishTaskStatus(ctx context.Context, taskID string, payload TaskStatusPayload) error
	PublishAgentStatus(ctx context.Context, agentID string, payload AgentStatusPayload) error
	PublishReviewCompleted(ctx context.Context, taskID string, payload ReviewCompletedPayload) error
	PublishTaskTimeout(ctx context.Context, taskID string, payload TaskTimeoutPayload) error
	PublishBudgetWarning(ctx context.Context, payload BudgetWarningPayload) error
	PublishBudgetExceeded(ctx context.Context, payload BudgetExceededPayload) error
	PublishLoopDetected(ctx context.Context, taskID string, payload LoopDetectedPayload) error
	PublishQueueProgress(ctx context.Context, payload QueueProgressPayload) error
}

// ToolCalled fans out a tool.called event to the task's own channel only.
// It is in-process-bus-only by default since ExecutionLog already durably
// records the call; call publisher.notifyOnly separately if cross-pod
// live delivery is needed for a given deployment.
func (d *Dispatcher) ToolCalled(_ context.Context, payload ToolCalledPayload) {
	d.bus.Publish(Event{Type: EventTypeToolCalled, Channel: TaskChannel(payload.TaskID), Payload: payload})
}

// NewDispatcher builds a Dispatcher over an in-process Bus and a durable
// publisher. Pass a *EventPublisher in production; tests may pass any
// DurablePublisher implementation.
func NewDispatcher(bus *Bus, publisher DurablePublisher) *Dispatcher {
	return &Dispatcher{bus: bus, publisher: publisher}
}

func (d *Dispatcher) TaskCreated(ctx context.Context, payload TaskCreatedPayload) {
	d.bus.Publish(Event{Type: EventTypeTaskCreated, Channel: GlobalTasksChannel, Payload: payload})
	if err := d.publisher.PublishTaskCreated(ctx, payload.TaskID, payload); err != nil {
		slog.Warn("dispatch task_created failed", "task_id", payload.TaskID, "error", err)
	}
}

func (d *Dispatcher) TaskStatus(ctx context.Context, payload TaskStatusPayload) {
	d.bus.Publish(Event{Type: EventTypeTaskStatus, Channel: TaskChannel(payload.TaskID), Payload: payload})
	if err := d.publisher.PublishTaskStatus(ctx, payload.TaskID, payload); err != nil {
		slog.Warn("dispatch task_status failed", "task_id", payload.TaskID, "error", err)
	}
}

func (d *Dispatcher) AgentStatus(ctx context.Context, payload AgentStatusPayload) {
	d.bus.Publish(Event{Type: EventTypeAgentStatus, Channel: GlobalAgentsChannel, Payload: payload})
	if err := d.publisher.PublishAgentStatus(ctx, payload.AgentID, payload); err != nil {
		slog.Warn("dispatch agent_status failed", "agent_id", payload.AgentID, "error", err)
	}
}

func (d *Dispatcher) ReviewCompleted(ctx context.Context, payload ReviewCompletedPayload) {
	d.bus.Publish(Event{Type: EventTypeReviewDone, Channel: TaskChannel(payload.TaskID), Payload: payload})
	if err := d.publisher.PublishReviewCompleted(ctx, payload.TaskID, payload); err != nil {
		slog.Warn("dispatch review_completed failed", "task_id", payload.TaskID, "error", err)
	}
}

func (d *Dispatcher) TaskTimeout(ctx context.Context, payload TaskTimeoutPayload) {
	d.bus.Publish(Event{Type: EventTypeTaskTimeout, Channel: TaskChannel(payload.TaskID), Payload: payload})
	if err := d.publisher.PublishTaskTimeout(ctx, payload.TaskID, payload); err != nil {
		slog.Warn("dispatch task_timeout failed", "task_id", payload.TaskID, "error", err)
	}
}

func (d *Dispatcher) BudgetWarning(ctx context.Context, payload BudgetWarningPayload) {
	d.bus.Publish(Event{Type: EventTypeBudgetWarning, Channel: GlobalTasksChannel, Payload: payload})
	if err := d.publisher.PublishBudgetWarning(ctx, payload); err != nil {
		slog.Warn("dispatch budget_warning failed", "error", err)
	}
}

func (d *Dispatcher) BudgetExceeded(ctx context.Context, payload BudgetExceededPayload) {
	d.bus.Publish(Event{Type: EventTypeBudgetExceeded, Channel: GlobalTasksChannel, Payload: payload})
	if err := d.publisher.PublishBudgetExceeded(ctx, payload); err != nil {
		slog.Warn("dispatch budget_exceeded failed", "error", err)
	}
}

func (d *Dispatcher) LoopDetected(ctx context.Context, payload LoopDetectedPayload) {
	d.bus.Publish(Event{Type: EventTypeLoopDetected, Channel: TaskChannel(payload.TaskID), Payload: payload})
	if err := d.publisher.PublishLoopDetected(ctx, payload.TaskID, payload); err != nil {
		slog.Warn("dispatch loop_detected failed", "task_id", payload.TaskID, "error", err)
	}
}

func (d *Dispatcher) QueueProgress(ctx context.Context, payload QueueProgressPayload) {
	d.bus.Publish(Event{Type: EventTypeQueueProgress, Channel: GlobalTasksChannel, Payload: payload})
	if err := d.publisher.PublishQueueProgress(ctx, payload); err != nil {
		slog.Warn("dispatch queue_progress failed", "error", err)
	}
}
