package queue

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/codeready-toolchain/tarsy/pkg/agentrt"
	"github.com/codeready-toolchain/tarsy/pkg/budget"
	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/loopdetect"
	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
	"github.com/codeready-toolchain/tarsy/pkg/router"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

// validationTimeout bounds how long a task's validation_command may run.
const validationTimeout = 15 * time.Second

// validationOutputCap bounds how much of a validation command's combined
// output is retained, in bytes.
const validationOutputCap = 64 * 1024

// ReviewTrigger is notified whenever a task reaches the completed state, so
// it can decide whether to schedule a code review. Implemented by
// pkg/review.Trigger; kept as an interface here to avoid an import cycle
// (review depends on router/store, not on queue).
type ReviewTrigger interface {
	OnTaskCompleted(ctx context.Context, task models.Task)
}

// outcomeKind classifies how one Executor run concluded, before the retry
// policy decides the task's persisted terminal status.
type outcomeKind int

const (
	outcomeCompleted outcomeKind = iota
	outcomeFailed
	outcomeAborted
)

type runOutcome struct {
	kind          outcomeKind
	errorCategory models.ErrorCategory
	errorMessage  string
	result        *models.TaskResult
}

// Executor drives one assigned task through the Agent Runtime to a
// terminal state (SPEC_FULL.md §4.9).
type Executor struct {
	tasks     store.TaskStore
	agents    store.AgentStore
	logs      store.ExecutionLogStore
	resources *resourcepool.Pool
	guard     *budget.Guard
	dispatch  *events.Dispatcher
	runtime   agentrt.Runtime
	review    ReviewTrigger
}

// NewExecutor constructs an Executor. review may be nil; a nil review
// trigger simply means completed tasks are never scheduled for review
// (used by tests and by deployments with enable_reviews=false).
func NewExecutor(tasks store.TaskStore, agents store.AgentStore, logs store.ExecutionLogStore, resources *resourcepool.Pool, guard *budget.Guard, dispatch *events.Dispatcher, runtime agentrt.Runtime, review ReviewTrigger) *Executor {
	return &Executor{
		tasks:     tasks,
		agents:    agents,
		logs:      logs,
		resources: resources,
		guard:     guard,
		dispatch:  dispatch,
		runtime:   runtime,
		review:    review,
	}
}

// RunTask drives task (already transitioned to assigned by the Assigner)
// through the Agent Runtime and persists its terminal outcome. It never
// returns an error to the caller: every failure mode is reflected in the
// task's persisted state and an emitted event instead.
func (e *Executor) RunTask(ctx context.Context, task models.Task, decision router.Decision) {
	log := slog.With("task_id", task.ID, "agent_id", decision.AgentID)

	if err := e.tasks.CompareAndSwapStatus(ctx, task.ID, models.TaskStatusAssigned, models.TaskStatusInProgress, nil); err != nil {
		log.Warn("executor: assigned->in_progress CAS failed", "error", err)
		e.releaseAndIdle(ctx, decision, task.ID)
		return
	}
	e.dispatch.TaskStatus(ctx, events.TaskStatusPayload{
		Type:             events.EventTypeTaskStatus,
		TaskID:           task.ID,
		Status:           string(models.TaskStatusInProgress),
		AssignedAgentID:  decision.AgentID,
		CurrentIteration: task.CurrentIteration,
		Timestamp:        events.Now(),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	detector := loopdetect.New()
	var abortReason string
	step := 0

	req := agentrt.Request{
		TaskID:          task.ID,
		AgentID:         decision.AgentID,
		TaskDescription: buildTaskDescription(task),
		UsePremium:      decision.Tier == models.TierPremium,
	}

	onEvent := func(evt agentrt.ToolEvent) {
		step++
		verdict := detector.Evaluate(evt.Action, evt.Input)

		entry := models.ExecutionLog{
			TaskID:       task.ID,
			Step:         evt.Step,
			Action:       evt.Action,
			Input:        evt.Input,
			Observation:  evt.Observation,
			DurationMS:   evt.DurationMS,
			ModelUsed:    evt.ModelUsed,
			InputTokens:  evt.InputTokens,
			OutputTokens: evt.OutputTokens,
		}
		if entry.Step == 0 {
			entry.Step = step
		}

		switch verdict.Verdict {
		case loopdetect.VerdictBlock:
			entry.Observation = "loop detector blocked this action: " + verdict.Reason
			entry.IsLoopDetected = true
		case loopdetect.VerdictAbort:
			entry.IsLoopDetected = true
			abortReason = verdict.Reason
			e.dispatch.LoopDetected(ctx, events.LoopDetectedPayload{
				Type:      events.EventTypeLoopDetected,
				TaskID:    task.ID,
				Verdict:   string(verdict.Verdict),
				Reason:    verdict.Reason,
				Timestamp: events.Now(),
			})
			cancel()
		case loopdetect.VerdictWarn:
			e.dispatch.LoopDetected(ctx, events.LoopDetectedPayload{
				Type:      events.EventTypeLoopDetected,
				TaskID:    task.ID,
				Verdict:   string(verdict.Verdict),
				Reason:    verdict.Reason,
				Timestamp: events.Now(),
			})
		}

		if err := e.logs.AppendLog(ctx, &entry); err != nil {
			log.Error("executor: failed to persist execution log", "step", entry.Step, "error", err)
		}

		if evt.ModelUsed != "" {
			e.recordCost(ctx, evt.InputTokens, evt.OutputTokens, evt.ModelUsed)
		}

		e.dispatch.ToolCalled(ctx, events.ToolCalledPayload{
			Type:           events.EventTypeToolCalled,
			TaskID:         task.ID,
			Step:           entry.Step,
			Action:         entry.Action,
			IsLoopDetected: entry.IsLoopDetected,
			Timestamp:      events.Now(),
		})
	}

	result, err := e.runtime.Execute(runCtx, req, onEvent)

	outcome := e.classify(ctx, task, result, err, abortReason, log)
	e.finalize(ctx, task, decision, outcome)
}

// buildTaskDescription composes the runtime request body from the task's
// title and description, mirroring the shape the runtime expects to present
// to the underlying LLM.
func buildTaskDescription(task models.Task) string {
	if task.Title == "" {
		return task.Description
	}
	return task.Title + "\n\n" + task.Description
}

// recordCost feeds one call's usage into the Budget Guard and emits
// budget_warning / budget_exceeded at most once per window.
func (e *Executor) recordCost(ctx context.Context, inputTokens, outputTokens int, model string) {
	if e.guard == nil {
		return
	}
	e.guard.RecordUsage(inputTokens, outputTokens, model)

	if e.guard.CheckAndMarkWarning() {
		snap := e.guard.Snapshot()
		e.dispatch.BudgetWarning(ctx, events.BudgetWarningPayload{
			Type:            events.EventTypeBudgetWarning,
			DailySpentCents: int64(snap.DailySpentCents),
			DailyLimitCents: snap.DailyLimitCents,
			Fraction:        snap.DailySpentCents / float64(snap.DailyLimitCents),
			Timestamp:       events.Now(),
		})
	}
	if e.guard.CheckAndMarkExceeded() {
		snap := e.guard.Snapshot()
		e.dispatch.BudgetExceeded(ctx, events.BudgetExceededPayload{
			Type:            events.EventTypeBudgetExceeded,
			DailySpentCents: int64(snap.DailySpentCents),
			DailyLimitCents: snap.DailyLimitCents,
			Timestamp:       events.Now(),
		})
	}
}

// classify maps the runtime's response (or transport error, or a loop-abort
// signalled mid-stream) to a runOutcome, running the task's validation
// command when the runtime reported success (spec.md §4.9 step 5).
func (e *Executor) classify(ctx context.Context, task models.Task, result *agentrt.Result, err error, abortReason string, log *slog.Logger) runOutcome {
	if abortReason != "" {
		return runOutcome{kind: outcomeAborted, errorCategory: models.ErrorCategoryLoop, errorMessage: abortReason}
	}
	if err != nil {
		if ctx.Err() != nil {
			return runOutcome{kind: outcomeAborted, errorCategory: models.ErrorCategoryTimeout, errorMessage: "cancelled: " + ctx.Err().Error()}
		}
		return runOutcome{kind: outcomeFailed, errorCategory: models.ErrorCategoryTransport, errorMessage: err.Error()}
	}
	if result == nil || !result.Success {
		reason := ""
		if result != nil {
			reason = result.Output.FailureReason
		}
		return runOutcome{kind: outcomeFailed, errorCategory: classifyFailureReason(reason), errorMessage: reason}
	}

	// success=true: run the validation command, if any, before declaring
	// the task completed.
	if task.ValidationCommand != "" {
		if err := runValidationCommand(ctx, task.ValidationCommand); err != nil {
			log.Info("executor: validation command failed", "error", err)
			return runOutcome{kind: outcomeFailed, errorCategory: models.ErrorCategoryValidation, errorMessage: err.Error()}
		}
	}

	taskResult := &models.TaskResult{
		Status:           string(result.Output.Status),
		Confidence:       result.Output.Confidence,
		FilesCreated:     result.Output.FilesCreated,
		CommandsExecuted: result.Output.CommandsExecuted,
		ActualOutput:     result.Output.ActualOutput,
		Suggestions:      result.Output.Suggestions,
	}
	return runOutcome{kind: outcomeCompleted, result: taskResult}
}

// classifyFailureReason maps a runtime's free-text failure reason to an
// error category, falling back to internal when nothing more specific
// matches.
func classifyFailureReason(reason string) models.ErrorCategory {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "rate limit"):
		return models.ErrorCategoryRateLimit
	case strings.Contains(lower, "budget"):
		return models.ErrorCategoryBudget
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return models.ErrorCategoryTimeout
	default:
		return models.ErrorCategoryInternal
	}
}

// runValidationCommand runs cmd in a shell with a 15s deadline, capping
// captured output at 64KB. Any non-zero exit or timeout is a validation
// failure; output past the cap is discarded and does not fail validation.
func runValidationCommand(ctx context.Context, command string) error {
	vctx, cancel := context.WithTimeout(ctx, validationTimeout)
	defer cancel()

	cmd := exec.CommandContext(vctx, "sh", "-c", command)
	var out bytes.Buffer
	cmd.Stdout = &capped{buf: &out, limit: validationOutputCap}
	cmd.Stderr = &capped{buf: &out, limit: validationOutputCap}

	return cmd.Run()
}

// capped is an io.Writer that silently discards bytes past limit, so a
// runaway validation command can never exhaust memory.
type capped struct {
	buf   *bytes.Buffer
	limit int
}

func (c *capped) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
	} else {
		c.buf.Write(p)
	}
	return len(p), nil
}

// finalize persists outcome as the task's new status (applying the retry
// policy for failed outcomes), releases the resource slot, idles the
// agent, emits the terminal event, and triggers a review when applicable.
func (e *Executor) finalize(ctx context.Context, task models.Task, decision router.Decision, outcome runOutcome) {
	log := slog.With("task_id", task.ID)

	var finalStatus models.TaskStatus

	switch outcome.kind {
	case outcomeCompleted:
		finalStatus = models.TaskStatusCompleted
		now := time.Now()
		err := e.tasks.CompareAndSwapStatus(ctx, task.ID, models.TaskStatusInProgress, finalStatus, func(t *models.Task) {
			t.Result = outcome.result
			t.CompletedAt = &now
			t.ErrorMessage = ""
			t.ErrorCategory = ""
		})
		if err != nil {
			log.Warn("executor: completed CAS failed", "error", err)
		}

	case outcomeAborted:
		finalStatus = models.TaskStatusAborted
		now := time.Now()
		err := e.tasks.CompareAndSwapStatus(ctx, task.ID, models.TaskStatusInProgress, finalStatus, func(t *models.Task) {
			t.ErrorCategory = outcome.errorCategory
			t.ErrorMessage = outcome.errorMessage
			t.CompletedAt = &now
		})
		if err != nil {
			log.Warn("executor: aborted CAS failed", "error", err)
		}

	case outcomeFailed:
		nextIteration := task.CurrentIteration + 1
		maxIterations := task.MaxIterations
		if maxIterations <= 0 {
			maxIterations = 3
		}
		if nextIteration < maxIterations {
			finalStatus = models.TaskStatusPending
			err := e.tasks.CompareAndSwapStatus(ctx, task.ID, models.TaskStatusInProgress, finalStatus, func(t *models.Task) {
				t.CurrentIteration = nextIteration
				t.ErrorCategory = outcome.errorCategory
				t.ErrorMessage = outcome.errorMessage
				t.AssignedAgentID = nil
				t.AssignedAt = nil
			})
			if err != nil {
				log.Warn("executor: retry-to-pending CAS failed", "error", err)
			}
		} else {
			finalStatus = models.TaskStatusFailed
			now := time.Now()
			err := e.tasks.CompareAndSwapStatus(ctx, task.ID, models.TaskStatusInProgress, finalStatus, func(t *models.Task) {
				t.CurrentIteration = nextIteration
				t.ErrorCategory = outcome.errorCategory
				t.ErrorMessage = outcome.errorMessage
				t.CompletedAt = &now
			})
			if err != nil {
				log.Warn("executor: terminal-failed CAS failed", "error", err)
			}
		}
	}

	e.releaseAndIdle(ctx, decision, task.ID)

	e.dispatch.TaskStatus(ctx, events.TaskStatusPayload{
		Type:             events.EventTypeTaskStatus,
		TaskID:           task.ID,
		Status:           string(finalStatus),
		CurrentIteration: task.CurrentIteration,
		ErrorCategory:    string(outcome.errorCategory),
		Timestamp:        events.Now(),
	})

	if outcome.kind == outcomeCompleted && e.review != nil {
		if t, err := e.tasks.GetTask(ctx, task.ID); err == nil {
			e.review.OnTaskCompleted(ctx, *t)
		}
	}
}

// releaseAndIdle releases the resource slot this task held and returns its
// agent to idle, regardless of how the run concluded.
func (e *Executor) releaseAndIdle(ctx context.Context, decision router.Decision, taskID string) {
	e.resources.Release(classForTier(decision.Tier), taskID)

	if decision.AgentID == "" {
		return
	}
	agent, err := e.agents.GetAgent(ctx, decision.AgentID)
	if err != nil {
		slog.Warn("executor: failed to load agent for idling", "agent_id", decision.AgentID, "error", err)
		return
	}
	agent.Status = models.AgentStatusIdle
	agent.CurrentTaskID = nil
	if err := e.agents.UpdateAgent(ctx, agent); err != nil {
		slog.Warn("executor: failed to idle agent", "agent_id", decision.AgentID, "error", err)
		return
	}
	e.dispatch.AgentStatus(ctx, events.AgentStatusPayload{
		Type:      events.EventTypeAgentStatus,
		AgentID:   agent.ID,
		Kind:      string(agent.Kind),
		Status:    string(agent.Status),
		Timestamp: events.Now(),
	})
}
