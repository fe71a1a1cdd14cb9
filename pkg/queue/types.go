// Package queue implements the Assigner and Executor: the background loop
// that matches pending tasks to idle agents with free resource slots, and
// drives one assigned task through the Agent Runtime to a terminal state
// (SPEC_FULL.md §4.8, §4.9).
package queue

import (
	"errors"
	"time"

	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
)

// Sentinel errors for queue operations, following the same no-work/
// at-capacity distinction the teacher's worker poll loop reacted to.
var (
	// ErrNoTasksAvailable indicates no pending tasks are in the queue.
	ErrNoTasksAvailable = errors.New("queue: no tasks available")

	// ErrAtCapacity indicates every resource class the Assigner tried is
	// currently full.
	ErrAtCapacity = errors.New("queue: at capacity")
)

// classForTier maps a routing tier to the backend class the Resource Pool
// admission-controls. Local runs serialize against the local backend class;
// every paid tier shares the premium_cloud class, since tier only decides
// which model is called, not which physical backend serializes it.
func classForTier(tier models.Tier) string {
	if tier == models.TierLocal {
		return resourcepool.ClassLocal
	}
	return resourcepool.ClassPremiumCloud
}

// PoolHealth reports the live state of the Assigner + Executor subsystem.
type PoolHealth struct {
	IsHealthy   bool           `json:"is_healthy"`
	QueueDepth  int            `json:"queue_depth"`
	ActiveTasks int            `json:"active_tasks"`
	Workers     []WorkerHealth `json:"workers"`
	LastTick    time.Time      `json:"last_tick"`
}

// WorkerHealth describes one in-flight Executor run.
type WorkerHealth struct {
	TaskID     string    `json:"task_id"`
	AgentID    string    `json:"agent_id"`
	Status     string    `json:"status"` // "in_progress"
	StartedAt  time.Time `json:"started_at"`
	StepsSoFar int       `json:"steps_so_far"`
}
