// Package router maps a Task's current state to a routing decision: which
// agent kind and cost tier should handle it next, per SPEC_FULL.md §4.6.
package router

import (
	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// TierEstimate mirrors pkg/cost.TierEstimate (kept local to avoid a
// dependency cycle; both tables must be kept in sync with spec.md §4.6).
var tierEstimate = map[models.Tier]float64{
	models.TierLocal:   0,
	models.TierCheap:   0.001,
	models.TierMid:     0.005,
	models.TierPremium: 0.04,
}

// tierForKind is the default tier an agent kind executes at, used when
// a required_agent override picks the kind directly (rule 1).
var tierForKind = map[models.AgentKind]models.Tier{
	models.AgentKindCoder: models.TierLocal,
	models.AgentKindQA:    models.TierCheap,
	models.AgentKindCTO:   models.TierPremium,
}

// Decision is the outcome of routing one Task.
type Decision struct {
	AgentID          string
	Tier             models.Tier
	Reason           string
	Confidence       float64
	FallbackAgentID  string
	EstCost          float64
	EscalateToHuman  bool
	NoCapacity       bool
	TargetKind       models.AgentKind
}

// AgentFinder locates idle agents. The router never touches persistence
// directly; it asks for candidates and picks among them.
type AgentFinder interface {
	IdleAgentsByKind(kind models.AgentKind) []models.Agent
}

// Router produces RoutingDecisions from Task state and the live agent pool.
type Router struct {
	agents AgentFinder
}

// New constructs a Router backed by the given agent lookup.
func New(agents AgentFinder) *Router {
	return &Router{agents: agents}
}

// Route applies the rules in SPEC_FULL.md §4.6, in order, first match wins.
func (r *Router) Route(task models.Task) Decision {
	switch {
	case task.RequiredAgent != nil:
		return r.routeToKind(*task.RequiredAgent, tierForKind[*task.RequiredAgent], "required_agent override", 1.0)

	case task.CurrentIteration == 0 && task.Complexity < 4:
		return r.routeToKind(models.AgentKindCoder, models.TierLocal, "low complexity, first attempt", 0.9)

	case task.CurrentIteration == 0 && task.Complexity >= 4:
		return r.routeToKind(models.AgentKindQA, models.TierCheap, "elevated complexity, first attempt", 0.8)

	case task.CurrentIteration == 1:
		return r.routeToKind(models.AgentKindQA, models.TierCheap, "1st fix", 0.75)

	case task.CurrentIteration == 2:
		return r.routeToKind(models.AgentKindCTO, models.TierMid, "2nd fix", 0.6)

	case task.CurrentIteration >= 3:
		return Decision{Reason: "exceeded fix attempts, escalating to human", EscalateToHuman: true}
	}

	// unreachable: the switch above is exhaustive over CurrentIteration >= 0
	return Decision{Reason: "no matching rule", NoCapacity: true}
}

// routeToKind implements rule 7 (capacity fallback) on top of a kind/tier
// chosen by one of rules 1-5: pick an idle agent of the target kind; if none
// is idle, the cto takes over if idle; otherwise the task stays pending.
func (r *Router) routeToKind(kind models.AgentKind, tier models.Tier, reason string, confidence float64) Decision {
	idle := r.agents.IdleAgentsByKind(kind)
	if len(idle) > 0 {
		chosen := idle[0]
		return Decision{
			AgentID:         chosen.ID,
			Tier:            tier,
			Reason:          reason,
			Confidence:      confidence,
			FallbackAgentID: r.fallbackFor(kind, chosen.ID),
			EstCost:         tierEstimate[tier],
			TargetKind:      kind,
		}
	}

	if kind != models.AgentKindCTO {
		if ctos := r.agents.IdleAgentsByKind(models.AgentKindCTO); len(ctos) > 0 {
			chosen := ctos[0]
			return Decision{
				AgentID:    chosen.ID,
				Tier:       models.TierPremium,
				Reason:     reason + " (no idle " + string(kind) + ", cto takes over)",
				Confidence: confidence * 0.8,
				EstCost:    tierEstimate[models.TierPremium],
				TargetKind: models.AgentKindCTO,
			}
		}
	}

	return Decision{
		Reason:     reason + " (no capacity)",
		NoCapacity: true,
		TargetKind: kind,
	}
}

// fallbackFor picks the nearest idle agent of a different kind than primary,
// preferring qa when the primary pick was a coder.
func (r *Router) fallbackFor(primaryKind models.AgentKind, primaryAgentID string) string {
	preferredOrder := []models.AgentKind{models.AgentKindQA, models.AgentKindCTO, models.AgentKindCoder}
	if primaryKind == models.AgentKindQA {
		preferredOrder = []models.AgentKind{models.AgentKindCoder, models.AgentKindCTO}
	}

	for _, kind := range preferredOrder {
		if kind == primaryKind {
			continue
		}
		for _, a := range r.agents.IdleAgentsByKind(kind) {
			if a.ID != primaryAgentID {
				return a.ID
			}
		}
	}
	return ""
}

// RouteDecomposition is the sub-decision for parent tasks marked for
// splitting: complexity >= 8 routes to premium, else mid. Produced only
// on demand, not part of the main Route rule ladder.
func RouteDecomposition(complexity float64) (tier models.Tier, estCost float64) {
	if complexity >= 8 {
		return models.TierPremium, tierEstimate[models.TierPremium]
	}
	return models.TierMid, tierEstimate[models.TierMid]
}

// RouteReview is the sub-decision for a code-review task: always premium,
// estimated at 0.02 USD per task under review.
func RouteReview(taskCount int) (tier models.Tier, estCost float64) {
	return models.TierPremium, 0.02 * float64(taskCount)
}
