package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
	"github.com/codeready-toolchain/tarsy/pkg/router"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

// defaultBatchSize bounds how many pending tasks one Tick considers, so a
// long pending queue never blocks the loop on a single scan.
const defaultBatchSize = 20

// agentFinderAdapter bridges store.AgentStore (context-aware, fallible) to
// router.AgentFinder (synchronous, in-memory shaped). It is constructed
// fresh for each Tick rather than held long-term, so its embedded context
// never outlives the call it was built for.
type agentFinderAdapter struct {
	ctx    context.Context
	agents store.AgentStore
}

func (a agentFinderAdapter) IdleAgentsByKind(kind models.AgentKind) []models.Agent {
	idle, err := a.agents.IdleAgentsByKind(a.ctx, kind)
	if err != nil {
		slog.Error("assigner: idle agent lookup failed", "kind", kind, "error", err)
		return nil
	}
	return idle
}

// Assigner implements the single logical loop described in SPEC_FULL.md
// §4.8: it matches pending tasks to idle agents with free resource slots,
// transitions them to assigned, and hands each one off to an Executor.
type Assigner struct {
	tasks     store.TaskStore
	agents    store.AgentStore
	resources *resourcepool.Pool
	dispatch  *events.Dispatcher
	executor  *Executor

	pollInterval time.Duration
	batchSize    int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu          sync.Mutex
	activeTasks map[string]context.CancelFunc
}

// NewAssigner constructs an Assigner. pollInterval is how long Start waits
// after a Tick that placed no task; zero selects a 2s default.
func NewAssigner(tasks store.TaskStore, agents store.AgentStore, resources *resourcepool.Pool, dispatch *events.Dispatcher, executor *Executor, pollInterval time.Duration) *Assigner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Assigner{
		tasks:        tasks,
		agents:       agents,
		resources:    resources,
		dispatch:     dispatch,
		executor:     executor,
		pollInterval: pollInterval,
		batchSize:    defaultBatchSize,
		stopCh:       make(chan struct{}),
		activeTasks:  make(map[string]context.CancelFunc),
	}
}

// Start runs the Assigner's poll loop until ctx is cancelled or Stop is
// called. It blocks the caller; run it in its own goroutine.
func (a *Assigner) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		default:
		}

		n, err := a.Tick(ctx)
		if err != nil && err != ErrNoTasksAvailable {
			slog.Error("assigner: tick failed", "error", err)
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-a.stopCh:
				return
			case <-time.After(a.pollInterval):
			}
		}
	}
}

// Stop signals the poll loop to exit and waits for every in-flight
// Executor run this Assigner started to finish, cancelling them first.
func (a *Assigner) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })

	a.mu.Lock()
	for _, cancel := range a.activeTasks {
		cancel()
	}
	a.mu.Unlock()

	a.wg.Wait()
}

// Tick scans pending tasks in priority order and assigns as many as
// current agent and resource capacity allow. It returns ErrNoTasksAvailable
// when the pending queue was empty, never when tasks existed but none
// could be placed (the caller should simply poll again either way).
func (a *Assigner) Tick(ctx context.Context) (int, error) {
	pending, err := a.tasks.ListPendingByPriority(ctx, a.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, ErrNoTasksAvailable
	}

	finder := agentFinderAdapter{ctx: ctx, agents: a.agents}
	rt := router.New(finder)

	assigned := 0
	for _, task := range pending {
		if a.tryAssignOne(ctx, rt, task) {
			assigned++
		}
	}
	return assigned, nil
}

// tryAssignOne routes and attempts to place a single pending task. It
// returns true iff the task was handed off to an Executor.
func (a *Assigner) tryAssignOne(ctx context.Context, rt *router.Router, task models.Task) bool {
	decision := rt.Route(task)

	if decision.EscalateToHuman {
		err := a.tasks.CompareAndSwapStatus(ctx, task.ID, models.TaskStatusPending, models.TaskStatusNeedsHuman, func(t *models.Task) {
			t.ErrorMessage = decision.Reason
		})
		if err != nil {
			slog.Warn("assigner: escalate CAS failed", "task_id", task.ID, "error", err)
			return false
		}
		a.dispatch.TaskStatus(ctx, events.TaskStatusPayload{
			Type:             events.EventTypeTaskStatus,
			TaskID:           task.ID,
			Status:           string(models.TaskStatusNeedsHuman),
			CurrentIteration: task.CurrentIteration,
			Timestamp:        events.Now(),
		})
		return false
	}

	if decision.NoCapacity {
		return false
	}

	class := classForTier(decision.Tier)
	if !a.resources.TryAcquire(class, task.ID) {
		return false
	}

	now := time.Now()
	agentID := decision.AgentID
	err := a.tasks.CompareAndSwapStatus(ctx, task.ID, models.TaskStatusPending, models.TaskStatusAssigned, func(t *models.Task) {
		t.AssignedAgentID = &agentID
		t.AssignedAt = &now
		t.Complexity = task.Complexity
	})
	if err != nil {
		// Another writer (a manual assignment, the Sweeper) beat us to it.
		a.resources.Release(class, task.ID)
		return false
	}

	if err := a.markAgentBusy(ctx, agentID, task.ID); err != nil {
		slog.Warn("assigner: failed to mark agent busy", "agent_id", agentID, "error", err)
	}

	a.dispatch.TaskStatus(ctx, events.TaskStatusPayload{
		Type:             events.EventTypeTaskStatus,
		TaskID:           task.ID,
		Status:           string(models.TaskStatusAssigned),
		AssignedAgentID:  agentID,
		CurrentIteration: task.CurrentIteration,
		Timestamp:        now.Format(time.RFC3339Nano),
	})

	task.Status = models.TaskStatusAssigned
	task.AssignedAgentID = &agentID
	task.AssignedAt = &now
	a.runExecutor(task, decision)
	return true
}

func (a *Assigner) markAgentBusy(ctx context.Context, agentID, taskID string) error {
	agent, err := a.agents.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	agent.Status = models.AgentStatusBusy
	agent.CurrentTaskID = &taskID
	if err := a.agents.UpdateAgent(ctx, agent); err != nil {
		return err
	}
	a.dispatch.AgentStatus(ctx, events.AgentStatusPayload{
		Type:          events.EventTypeAgentStatus,
		AgentID:       agent.ID,
		Kind:          string(agent.Kind),
		Status:        string(agent.Status),
		CurrentTaskID: taskID,
		Timestamp:     events.Now(),
	})
	return nil
}

// runExecutor hands one assigned task off to the Executor in its own
// goroutine, tracked so Stop can cancel and wait for it.
func (a *Assigner) runExecutor(task models.Task, decision router.Decision) {
	runCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.activeTasks[task.ID] = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		defer func() {
			a.mu.Lock()
			delete(a.activeTasks, task.ID)
			a.mu.Unlock()
		}()
		a.executor.RunTask(runCtx, task, decision)
	}()
}

// ActiveTaskCount reports how many tasks this Assigner currently has
// in-flight with an Executor.
func (a *Assigner) ActiveTaskCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.activeTasks)
}
