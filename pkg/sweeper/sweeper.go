// Package sweeper implements the Stuck-Task Sweeper: a periodic scan that
// force-aborts tasks stuck in assigned/in_progress past a wall-clock
// timeout (SPEC_FULL.md §4.10). It is the safety net the Assigner and
// Executor never are: a crashed or wedged Executor leaves its task's
// updated_at frozen, which the Sweeper alone notices.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

// DefaultInterval is how often the Sweeper scans when none is configured.
const DefaultInterval = 60 * time.Second

// DefaultTaskTimeout is how long a task may sit in assigned/in_progress
// before it is considered stuck.
const DefaultTaskTimeout = 10 * time.Minute

// recoveryRingSize bounds how many recent recoveries are kept for
// observability via RecentRecoveries (the sweep-once subcommand reports
// their count); no HTTP endpoint returns them.
const recoveryRingSize = 50

// Recovery records one task the Sweeper force-aborted, for observability.
type Recovery struct {
	TaskID      string        `json:"task_id"`
	AgentID     string        `json:"agent_id,omitempty"`
	RecoveredAt time.Time     `json:"recovered_at"`
	StuckFor    time.Duration `json:"stuck_for"`
}

// Sweeper periodically scans for stuck tasks and force-aborts them.
type Sweeper struct {
	tasks     store.TaskStore
	agents    store.AgentStore
	resources *resourcepool.Pool
	dispatch  *events.Dispatcher

	interval    time.Duration
	taskTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	recovered []Recovery
}

// New constructs a Sweeper. Zero interval/taskTimeout select the defaults.
func New(tasks store.TaskStore, agents store.AgentStore, resources *resourcepool.Pool, dispatch *events.Dispatcher, interval, taskTimeout time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &Sweeper{
		tasks:       tasks,
		agents:      agents,
		resources:   resources,
		dispatch:    dispatch,
		interval:    interval,
		taskTimeout: taskTimeout,
		stopCh:      make(chan struct{}),
	}
}

// Run blocks, scanning every interval until ctx is cancelled or Stop is
// called. Run it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("sweeper: scan failed", "error", err)
			}
		}
	}
}

// Stop signals Run to exit.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Sweep performs one scan, force-aborting every task it finds stuck.
// Exported so callers (tests, a "sweep-once" CLI subcommand) can trigger a
// scan outside of the ticker loop.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.taskTimeout)

	candidates, err := s.tasks.ListTasks(ctx, models.TaskFilters{})
	if err != nil {
		return err
	}

	for _, task := range candidates {
		if !isStuck(task, cutoff) {
			continue
		}
		s.recover(ctx, task)
	}
	return nil
}

// isStuck reports whether task is in a non-terminal in-flight status and
// has not been updated since cutoff.
func isStuck(task models.Task, cutoff time.Time) bool {
	switch task.Status {
	case models.TaskStatusAssigned, models.TaskStatusInProgress:
		return task.UpdatedAt.Before(cutoff)
	default:
		return false
	}
}

// recover force-aborts one stuck task: transitions it to aborted, releases
// its resource slot, idles its agent, and emits a task_timeout event.
func (s *Sweeper) recover(ctx context.Context, task models.Task) {
	log := slog.With("task_id", task.ID)

	stuckFor := time.Since(task.UpdatedAt)
	from := task.Status

	err := s.tasks.CompareAndSwapStatus(ctx, task.ID, from, models.TaskStatusAborted, func(t *models.Task) {
		t.ErrorCategory = models.ErrorCategoryTimeout
		t.ErrorMessage = "sweeper: no progress for " + stuckFor.Round(time.Second).String()
		now := time.Now()
		t.CompletedAt = &now
	})
	if err != nil {
		// Another component (the Executor finishing just in time) already
		// moved the task; nothing to recover.
		if err != store.ErrCASConflict {
			log.Warn("sweeper: CAS to aborted failed", "error", err)
		}
		return
	}

	// The task may have been assigned to a class we can't directly observe
	// (we didn't make the routing decision) — release against both known
	// classes; releasing an absent reservation is a no-op.
	s.resources.Release(resourcepool.ClassLocal, task.ID)
	s.resources.Release(resourcepool.ClassPremiumCloud, task.ID)

	var agentID string
	if task.AssignedAgentID != nil {
		agentID = *task.AssignedAgentID
		s.idleAgent(ctx, agentID)
	}

	log.Warn("sweeper: recovered stuck task", "stuck_for", stuckFor, "agent_id", agentID)

	s.dispatch.TaskTimeout(ctx, events.TaskTimeoutPayload{
		Type:         events.EventTypeTaskTimeout,
		TaskID:       task.ID,
		AgentID:      agentID,
		RunningForMS: stuckFor.Milliseconds(),
		Timestamp:    events.Now(),
	})
	s.dispatch.TaskStatus(ctx, events.TaskStatusPayload{
		Type:             events.EventTypeTaskStatus,
		TaskID:           task.ID,
		Status:           string(models.TaskStatusAborted),
		CurrentIteration: task.CurrentIteration,
		ErrorCategory:    string(models.ErrorCategoryTimeout),
		Timestamp:        events.Now(),
	})

	s.record(Recovery{TaskID: task.ID, AgentID: agentID, RecoveredAt: time.Now(), StuckFor: stuckFor})
}

// idleAgent sets an agent back to idle and increments its failure counter.
func (s *Sweeper) idleAgent(ctx context.Context, agentID string) {
	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		slog.Warn("sweeper: failed to load agent", "agent_id", agentID, "error", err)
		return
	}
	agent.Status = models.AgentStatusIdle
	agent.CurrentTaskID = nil
	agent.TasksFailed++
	if err := s.agents.UpdateAgent(ctx, agent); err != nil {
		slog.Warn("sweeper: failed to idle agent", "agent_id", agentID, "error", err)
		return
	}
	s.dispatch.AgentStatus(ctx, events.AgentStatusPayload{
		Type:      events.EventTypeAgentStatus,
		AgentID:   agent.ID,
		Kind:      string(agent.Kind),
		Status:    string(agent.Status),
		Timestamp: events.Now(),
	})
}

// record appends a Recovery to the bounded ring kept for observability.
func (s *Sweeper) record(r Recovery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovered = append(s.recovered, r)
	if len(s.recovered) > recoveryRingSize {
		s.recovered = s.recovered[len(s.recovered)-recoveryRingSize:]
	}
}

// RecentRecoveries returns a snapshot of the bounded recovery ring, most
// recent last.
func (s *Sweeper) RecentRecoveries() []Recovery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recovery, len(s.recovered))
	copy(out, s.recovered)
	return out
}
