package queue

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/tarsy/pkg/agentrt"
	"github.com/codeready-toolchain/tarsy/pkg/budget"
	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
	"github.com/codeready-toolchain/tarsy/pkg/store"
	"github.com/codeready-toolchain/tarsy/pkg/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopPublisher discards every durable publish, so these tests exercise the
// Assigner/Executor/Sweeper's domain logic without a real Postgres
// EventPublisher, the same substitution pkg/sweeper and pkg/review's own
// tests make via the Dispatcher's DurablePublisher interface.
type nopPublisher struct{}

func (nopPublisher) PublishTaskCreated(context.Context, string, events.TaskCreatedPayload) error {
	return nil
}
func (nopPublisher) PublishTaskStatus(context.Context, string, events.TaskStatusPayload) error {
	return nil
}
func (nopPublisher) PublishAgentStatus(context.Context, string, events.AgentStatusPayload) error {
	return nil
}
func (nopPublisher) PublishReviewCompleted(context.Context, string, events.ReviewCompletedPayload) error {
	return nil
}
func (nopPublisher) PublishTaskTimeout(context.Context, string, events.TaskTimeoutPayload) error {
	return nil
}
func (nopPublisher) PublishBudgetWarning(context.Context, events.BudgetWarningPayload) error {
	return nil
}
func (nopPublisher) PublishBudgetExceeded(context.Context, events.BudgetExceededPayload) error {
	return nil
}
func (nopPublisher) PublishLoopDetected(context.Context, string, events.LoopDetectedPayload) error {
	return nil
}
func (nopPublisher) PublishQueueProgress(context.Context, events.QueueProgressPayload) error {
	return nil
}

// blockingRuntime is a fake agentrt.Runtime whose Execute call reports which
// task it was asked to run on calls, then waits on release before returning
// a successful terminal Result (or ctx cancellation, whichever comes first).
// This lets a test observe exactly which task the Assigner picked before
// letting the Executor run to completion.
type blockingRuntime struct {
	calls   chan agentrt.Request
	release chan struct{}
}

func newBlockingRuntime() *blockingRuntime {
	return &blockingRuntime{
		calls:   make(chan agentrt.Request, 8),
		release: make(chan struct{}),
	}
}

func (r *blockingRuntime) Execute(ctx context.Context, req agentrt.Request, _ func(agentrt.ToolEvent)) (*agentrt.Result, error) {
	r.calls <- req
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &agentrt.Result{
		Success: true,
		Output:  agentrt.Output{Status: agentrt.OutputSuccess, Confidence: 0.9, ActualOutput: "done"},
	}, nil
}

func newTestDispatcher() *events.Dispatcher {
	return events.NewDispatcher(events.NewBus(), nopPublisher{})
}

func newTestGuard() *budget.Guard {
	return budget.NewGuard(budget.Config{DailyLimitCents: 10000, WarningThreshold: 0.8, Enabled: true})
}

// TestAssignerOrdersByPriorityNotCreationOrder covers scenario S4: with a
// single idle coder and a single local resource slot, a task created first
// but at lower priority must lose its slot to a task created later at
// higher priority.
func TestAssignerOrdersByPriorityNotCreationOrder(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	pool := resourcepool.New(map[string]int{resourcepool.ClassLocal: 1, resourcepool.ClassPremiumCloud: 1})
	dispatch := newTestDispatcher()
	rt := newBlockingRuntime()
	guard := newTestGuard()

	require.NoError(t, mem.CreateAgent(ctx, &models.Agent{ID: "coder-1", Kind: models.AgentKindCoder, Status: models.AgentStatusIdle}))

	low := models.Task{
		ID: "low-priority", TaskType: models.TaskTypeCode, Status: models.TaskStatusPending,
		Priority: 0, Complexity: 2, CreatedAt: time.Now().Add(-time.Minute),
	}
	high := models.Task{
		ID: "high-priority", TaskType: models.TaskTypeCode, Status: models.TaskStatusPending,
		Priority: 5, Complexity: 2, CreatedAt: time.Now(),
	}
	require.NoError(t, mem.CreateTask(ctx, &low))
	require.NoError(t, mem.CreateTask(ctx, &high))

	executor := NewExecutor(mem, mem, mem, pool, guard, dispatch, rt, nil)
	assigner := NewAssigner(mem, mem, pool, dispatch, executor, time.Hour)

	n, err := assigner.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only one idle agent and one local slot: exactly one task placed")

	select {
	case req := <-rt.calls:
		assert.Equal(t, high.ID, req.TaskID, "higher priority task must be routed ahead of the earlier-created, lower priority one")
	case <-time.After(2 * time.Second):
		t.Fatal("executor never called the runtime")
	}

	gotHigh, err := mem.GetTask(ctx, high.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.TaskStatusPending, gotHigh.Status)

	gotLow, err := mem.GetTask(ctx, low.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, gotLow.Status, "low priority task stays queued while the only slot is held")

	close(rt.release)

	require.Eventually(t, func() bool {
		gotHigh, err := mem.GetTask(ctx, high.ID)
		if err != nil || gotHigh.Status != models.TaskStatusCompleted {
			return false
		}
		agent, err := mem.GetAgent(ctx, "coder-1")
		return err == nil && agent.Status == models.AgentStatusIdle
	}, 2*time.Second, 10*time.Millisecond, "wait for the completed task's slot and agent to be released, not just its terminal status")

	n, err = assigner.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "slot freed by the completed task now goes to the remaining pending task")

	select {
	case req := <-rt.calls:
		assert.Equal(t, low.ID, req.TaskID)
	case <-time.After(2 * time.Second):
		t.Fatal("second tick never dispatched the low priority task")
	}

	require.Eventually(t, func() bool {
		gotLow, err := mem.GetTask(ctx, low.ID)
		return err == nil && gotLow.Status == models.TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond, "rt.release is already closed, so the second run completes immediately")

	assigner.Stop()
}

// TestSweeperRecoversTaskStuckPastTimeout covers scenario S7: a task the
// Executor assigned but that stopped making progress past the configured
// timeout is force-aborted by the Sweeper, its resource slot and agent are
// freed, and the slot becomes assignable again.
func TestSweeperRecoversTaskStuckPastTimeout(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	pool := resourcepool.New(map[string]int{resourcepool.ClassLocal: 1, resourcepool.ClassPremiumCloud: 1})
	dispatch := newTestDispatcher()
	rt := newBlockingRuntime()
	guard := newTestGuard()

	require.NoError(t, mem.CreateAgent(ctx, &models.Agent{ID: "coder-1", Kind: models.AgentKindCoder, Status: models.AgentStatusIdle}))

	task := models.Task{
		ID: "stuck-task", TaskType: models.TaskTypeCode, Status: models.TaskStatusPending,
		Priority: 0, Complexity: 2, CreatedAt: time.Now(),
	}
	require.NoError(t, mem.CreateTask(ctx, &task))

	executor := NewExecutor(mem, mem, mem, pool, guard, dispatch, rt, nil)
	assigner := NewAssigner(mem, mem, pool, dispatch, executor, time.Hour)

	n, err := assigner.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Wait for the Executor to reach in_progress (the runtime call is
	// blocked on rt.release, simulating a wedged external collaborator),
	// then backdate updated_at past the Sweeper's timeout the way a task
	// that genuinely stopped making progress would accumulate staleness.
	require.Eventually(t, func() bool {
		got, err := mem.GetTask(ctx, task.ID)
		return err == nil && got.Status == models.TaskStatusInProgress
	}, 2*time.Second, 10*time.Millisecond)

	stuck, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	stuck.UpdatedAt = time.Now().Add(-20 * time.Minute)
	require.NoError(t, mem.UpdateTask(ctx, stuck))

	sw := sweeper.New(mem, mem, pool, dispatch, time.Hour, 10*time.Minute)
	require.NoError(t, sw.Sweep(ctx))

	got, err := mem.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusAborted, got.Status)
	assert.Equal(t, models.ErrorCategoryTimeout, got.ErrorCategory)

	agent, err := mem.GetAgent(ctx, "coder-1")
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusIdle, agent.Status, "sweeper returns the agent to idle")
	assert.Nil(t, agent.CurrentTaskID)

	status := pool.Status()
	assert.Equal(t, 0, status[resourcepool.ClassLocal].Active, "sweeper releases the local slot the stuck task held")

	recoveries := sw.RecentRecoveries()
	require.Len(t, recoveries, 1)
	assert.Equal(t, task.ID, recoveries[0].TaskID)

	assigner.Stop()
	close(rt.release)
}
