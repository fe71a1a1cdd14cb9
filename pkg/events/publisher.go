package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EventPublisher publishes events for WebSocket delivery.
// Persistent events are stored in the events table then broadcast via NOTIFY.
// Transient events (budget warnings, loop detections) are broadcast via
// NOTIFY only.
//
// Each public method accepts a specific typed payload struct — see payloads.go.
// Internally, payloads are marshaled to JSON and routed to the appropriate
// channel via persistAndNotify or notifyOnly.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates a new EventPublisher.
// The db parameter should be the *sql.DB underlying the GORM connection.
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// --- Typed public methods ---

// PublishTaskCreated persists and broadcasts a task.created event to the
// global tasks channel.
func (p *EventPublisher) PublishTaskCreated(ctx context.Context, taskID string, payload TaskCreatedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal TaskCreatedPayload: %w", err)
	}
	return p.persistAndNotify(ctx, taskID, GlobalTasksChannel, payloadJSON)
}

// PublishTaskStatus persists a task.status event to the task's own channel
// and broadcasts a transient copy to the global tasks channel. Both
// publishes are best-effort: if the persistent one fails, the transient one
// is still attempted. Returns the first error encountered (if any).
func (p *EventPublisher) PublishTaskStatus(ctx context.Context, taskID string, payload TaskStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal TaskStatusPayload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, taskID, TaskChannel(taskID), payloadJSON); err != nil {
		slog.Warn("failed to publish task status to task channel", "task_id", taskID, "status", payload.Status, "error", err)
		firstErr = err
	}

	if err := p.notifyOnly(ctx, GlobalTasksChannel, payloadJSON); err != nil {
		slog.Warn("failed to publish task status to global channel", "task_id", taskID, "status", payload.Status, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// PublishAgentStatus persists and broadcasts an agent.status event to the
// global agents channel.
func (p *EventPublisher) PublishAgentStatus(ctx context.Context, agentID string, payload AgentStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal AgentStatusPayload: %w", err)
	}
	return p.persistAndNotify(ctx, agentID, GlobalAgentsChannel, payloadJSON)
}

// PublishReviewCompleted persists and broadcasts a review.completed event
// to the reviewed task's channel.
func (p *EventPublisher) PublishReviewCompleted(ctx context.Context, taskID string, payload ReviewCompletedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ReviewCompletedPayload: %w", err)
	}
	return p.persistAndNotify(ctx, taskID, TaskChannel(taskID), payloadJSON)
}

// PublishTaskTimeout persists and broadcasts a task.timeout event, fired by
// the Stuck-Task Sweeper when it force-aborts a run.
func (p *EventPublisher) PublishTaskTimeout(ctx context.Context, taskID string, payload TaskTimeoutPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal TaskTimeoutPayload: %w", err)
	}
	return p.persistAndNotify(ctx, taskID, TaskChannel(taskID), payloadJSON)
}

// PublishBudgetWarning broadcasts a budget.warning transient event (no DB
// persistence — budget state is in-memory per spec.md §4.2).
func (p *EventPublisher) PublishBudgetWarning(ctx context.Context, payload BudgetWarningPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal BudgetWarningPayload: %w", err)
	}
	return p.notifyOnly(ctx, GlobalTasksChannel, payloadJSON)
}

// PublishBudgetExceeded broadcasts a budget.exceeded transient event.
func (p *EventPublisher) PublishBudgetExceeded(ctx context.Context, payload BudgetExceededPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal BudgetExceededPayload: %w", err)
	}
	return p.notifyOnly(ctx, GlobalTasksChannel, payloadJSON)
}

// PublishLoopDetected broadcasts a loop.detected transient event to the
// offending task's channel.
func (p *EventPublisher) PublishLoopDetected(ctx context.Context, taskID string, payload LoopDetectedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal LoopDetectedPayload: %w", err)
	}
	return p.notifyOnly(ctx, TaskChannel(taskID), payloadJSON)
}

// PublishQueueProgress broadcasts a queue.progress transient event to the
// global tasks channel for the dashboard's live counters.
func (p *EventPublisher) PublishQueueProgress(ctx context.Context, payload QueueProgressPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal QueueProgressPayload: %w", err)
	}
	return p.notifyOnly(ctx, GlobalTasksChannel, payloadJSON)
}

// --- Internal core methods ---

// persistAndNotify persists a pre-marshaled event to the database and broadcasts
// via NOTIFY in a single transaction (pg_notify is transactional — held until COMMIT).
func (p *EventPublisher) persistAndNotify(ctx context.Context, taskID, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// 1. Persist to events table (within transaction)
	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (task_id, channel, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		taskID, channel, payloadJSON, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	// Build NOTIFY payload with db_event_id for catchup tracking.
	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	// 2. pg_notify within same transaction — held until COMMIT
	_, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	// 3. Commit — INSERT is persisted and NOTIFY fires atomically
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}

	return nil
}

// notifyOnly broadcasts a pre-marshaled event via NOTIFY without persisting to DB.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// --- Internal helpers ---

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for NOTIFY
// delivery and applies truncation if the result exceeds PostgreSQL's limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enrichedBytes, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}

	return truncateIfNeeded(string(enrichedBytes))
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope from the full
// JSON payload bytes, extracting only the routing fields the client needs
// to fetch the complete event from the database.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type      string `json:"type"`
		TaskID    string `json:"task_id"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":      routing.Type,
		"task_id":   routing.TaskID,
		"truncated": true,
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
