// Package budget tracks cumulative spend and blocks premium/mid-tier calls
// once a daily limit is exceeded. It is the orchestrator's admission-control
// backstop against runaway model spend.
//
// Guard is an explicit value constructed once at startup and threaded
// through the root service registry — never a package-level global — so
// tests can build isolated universes instead of sharing mutable state.
package budget

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/tarsy/pkg/cost"
	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// Config holds the tunables for a Guard.
type Config struct {
	DailyLimitCents   int64
	WarningThreshold  float64 // fraction, default 0.8
	Enabled           bool
}

// DefaultConfig returns sane built-in defaults.
func DefaultConfig() Config {
	return Config{
		DailyLimitCents:  2000, // $20/day
		WarningThreshold: 0.8,
		Enabled:          true,
	}
}

// Guard accumulates cost and reports whether premium/mid-tier calls are
// currently blocked. Daily counters reset at UTC midnight; all-time,
// per-model and task-count totals are never reset.
type Guard struct {
	cfg Config

	mu sync.Mutex

	dailySpentCents   float64
	allTimeSpentCents float64
	dailyResetAt      time.Time

	perModelCents map[string]float64
	taskCount     int

	isWarning     bool
	isOverBudget  bool
	warnedAlready bool // suppress repeated budget_warning events at the caller layer
	overAlready   bool // suppress repeated budget_exceeded events at the caller layer
}

// NewGuard constructs a Guard with the given configuration.
func NewGuard(cfg Config) *Guard {
	return &Guard{
		cfg:           cfg,
		dailyResetAt:  nextUTCMidnight(time.Now()),
		perModelCents: make(map[string]float64),
	}
}

func nextUTCMidnight(from time.Time) time.Time {
	u := from.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// maybeReset resets daily counters if the current time has crossed
// dailyResetAt. Must be called with mu held.
func (g *Guard) maybeReset(now time.Time) {
	if !now.UTC().Before(g.dailyResetAt) {
		g.dailySpentCents = 0
		g.dailyResetAt = nextUTCMidnight(now)
		g.isWarning = false
		g.isOverBudget = false
		g.warnedAlready = false
		g.overAlready = false
	}
}

// RecordUsage adds the dollar cost of one LLM call (computed from tokens and
// model) to the daily and all-time totals. Never decreases totals.
func (g *Guard) RecordUsage(inputTokens, outputTokens int, model string) {
	dollars := cost.Calculate(model, inputTokens, outputTokens)
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.maybeReset(now)

	cents := dollars * 100
	g.dailySpentCents += cents
	g.allTimeSpentCents += cents
	g.perModelCents[model] += cents
	g.taskCount++

	g.recomputeLocked()
}

// recomputeLocked updates isWarning/isOverBudget from the current daily
// spend. Must be called with mu held.
func (g *Guard) recomputeLocked() {
	if g.cfg.DailyLimitCents <= 0 {
		g.isWarning = false
		g.isOverBudget = false
		return
	}
	limit := float64(g.cfg.DailyLimitCents)
	g.isOverBudget = g.dailySpentCents > limit
	g.isWarning = !g.isOverBudget && g.dailySpentCents > limit*g.cfg.WarningThreshold
}

// IsPremiumBlocked reports whether premium and mid tier calls should be
// refused right now. Local calls are always free and always allowed.
func (g *Guard) IsPremiumBlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset(time.Now())
	return g.cfg.Enabled && g.isOverBudget
}

// TierAllowed reports whether a call at the given tier may proceed.
func (g *Guard) TierAllowed(tier models.Tier) bool {
	if tier == models.TierLocal {
		return true
	}
	return !g.IsPremiumBlocked()
}

// CheckAndMarkWarning returns true exactly once per warning window: the
// first call after IsWarning becomes true returns true, subsequent calls
// return false until the next daily reset. Used by callers to emit
// budget_warning exactly once per window instead of on every record.
func (g *Guard) CheckAndMarkWarning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset(time.Now())
	if g.isWarning && !g.warnedAlready {
		g.warnedAlready = true
		return true
	}
	return false
}

// CheckAndMarkExceeded returns true exactly once per over-budget window:
// the first call after IsOverBudget becomes true returns true, subsequent
// calls return false until the next daily reset. Used by callers to emit
// budget_exceeded exactly once per window.
func (g *Guard) CheckAndMarkExceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset(time.Now())
	if g.isOverBudget && !g.overAlready {
		g.overAlready = true
		return true
	}
	return false
}

// Snapshot is a read-only view of the Guard's current state.
type Snapshot struct {
	Enabled           bool               `json:"enabled"`
	DailyLimitCents   int64              `json:"daily_limit_cents"`
	DailySpentCents   float64            `json:"daily_spent_cents"`
	AllTimeSpentCents float64            `json:"all_time_spent_cents"`
	IsWarning         bool               `json:"is_warning"`
	IsOverBudget      bool               `json:"is_over_budget"`
	ResetAt           time.Time          `json:"reset_at"`
	PerModelCents     map[string]float64 `json:"per_model_cents"`
	TaskCount         int                `json:"task_count"`
	CostPerTask       float64            `json:"cost_per_task_cents"`
}

// Snapshot returns a consistent read of the Guard's current state,
// resetting daily counters first if the reset boundary has passed.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeReset(time.Now())

	perModel := make(map[string]float64, len(g.perModelCents))
	for k, v := range g.perModelCents {
		perModel[k] = v
	}

	var costPerTask float64
	if g.taskCount > 0 {
		costPerTask = g.allTimeSpentCents / float64(g.taskCount)
	}

	return Snapshot{
		Enabled:           g.cfg.Enabled,
		DailyLimitCents:   g.cfg.DailyLimitCents,
		DailySpentCents:   g.dailySpentCents,
		AllTimeSpentCents: g.allTimeSpentCents,
		IsWarning:         g.isWarning,
		IsOverBudget:      g.isOverBudget,
		ResetAt:           g.dailyResetAt,
		PerModelCents:     perModel,
		TaskCount:         g.taskCount,
		CostPerTask:       costPerTask,
	}
}
