package api

import (
	"time"

	"github.com/codeready-toolchain/tarsy/pkg/complexity"
	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/models"
)

func timeNow() time.Time {
	return time.Now()
}

func complexityInput(t *models.Task) complexity.Input {
	return complexity.Input{
		Title:            t.Title,
		Description:      t.Description,
		TaskType:         t.TaskType,
		Priority:         t.Priority,
		CurrentIteration: t.CurrentIteration,
	}
}

func taskCreatedPayload(t *models.Task) events.TaskCreatedPayload {
	return events.TaskCreatedPayload{
		Type:       events.EventTypeTaskCreated,
		TaskID:     t.ID,
		Title:      t.Title,
		TaskType:   string(t.TaskType),
		Complexity: t.Complexity,
		Timestamp:  events.Now(),
	}
}

func agentStatusPayload(a *models.Agent) events.AgentStatusPayload {
	payload := events.AgentStatusPayload{
		Type:      events.EventTypeAgentStatus,
		AgentID:   a.ID,
		Kind:      string(a.Kind),
		Status:    string(a.Status),
		Timestamp: events.Now(),
	}
	if a.CurrentTaskID != nil {
		payload.CurrentTaskID = *a.CurrentTaskID
	}
	return payload
}
