package router

import (
	"testing"

	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	byKind map[models.AgentKind][]models.Agent
}

func (f fakeFinder) IdleAgentsByKind(kind models.AgentKind) []models.Agent {
	return f.byKind[kind]
}

func coderAgent(id string) models.Agent { return models.Agent{ID: id, Kind: models.AgentKindCoder, Status: models.AgentStatusIdle} }
func qaAgent(id string) models.Agent    { return models.Agent{ID: id, Kind: models.AgentKindQA, Status: models.AgentStatusIdle} }
func ctoAgent(id string) models.Agent   { return models.Agent{ID: id, Kind: models.AgentKindCTO, Status: models.AgentStatusIdle} }

func TestRouteRequiredAgentOverride(t *testing.T) {
	qa := models.AgentKindQA
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindQA: {qaAgent("qa-1")},
	}})
	d := r.Route(models.Task{RequiredAgent: &qa, Complexity: 9, CurrentIteration: 0})
	assert.Equal(t, "qa-1", d.AgentID)
	assert.Equal(t, models.TierCheap, d.Tier)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestRouteLowComplexityFirstAttemptGoesToCoderLocal(t *testing.T) {
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindCoder: {coderAgent("coder-1")},
	}})
	d := r.Route(models.Task{Complexity: 2, CurrentIteration: 0})
	assert.Equal(t, "coder-1", d.AgentID)
	assert.Equal(t, models.TierLocal, d.Tier)
}

func TestRouteHighComplexityFirstAttemptGoesToQACheap(t *testing.T) {
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindQA: {qaAgent("qa-1")},
	}})
	d := r.Route(models.Task{Complexity: 7, CurrentIteration: 0})
	assert.Equal(t, "qa-1", d.AgentID)
	assert.Equal(t, models.TierCheap, d.Tier)
}

func TestRouteFirstFixGoesToQA(t *testing.T) {
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindQA: {qaAgent("qa-1")},
	}})
	d := r.Route(models.Task{Complexity: 2, CurrentIteration: 1})
	assert.Equal(t, models.AgentKindQA, d.TargetKind)
	assert.Contains(t, d.Reason, "1st fix")
}

func TestRouteSecondFixGoesToCTOMid(t *testing.T) {
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindCTO: {ctoAgent("cto-1")},
	}})
	d := r.Route(models.Task{Complexity: 2, CurrentIteration: 2})
	assert.Equal(t, "cto-1", d.AgentID)
	assert.Equal(t, models.TierMid, d.Tier)
}

func TestRouteThirdFixEscalatesToHuman(t *testing.T) {
	r := New(fakeFinder{})
	d := r.Route(models.Task{Complexity: 5, CurrentIteration: 3})
	assert.True(t, d.EscalateToHuman)
	assert.Empty(t, d.AgentID)
}

func TestRouteNoIdleAgentFallsBackToCTO(t *testing.T) {
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindCTO: {ctoAgent("cto-1")},
	}})
	d := r.Route(models.Task{Complexity: 2, CurrentIteration: 0})
	require.NotEmpty(t, d.AgentID)
	assert.Equal(t, "cto-1", d.AgentID)
	assert.Equal(t, models.TierPremium, d.Tier)
}

func TestRouteNoIdleAgentAndNoCTOYieldsNoCapacity(t *testing.T) {
	r := New(fakeFinder{})
	d := r.Route(models.Task{Complexity: 2, CurrentIteration: 0})
	assert.True(t, d.NoCapacity)
	assert.Empty(t, d.AgentID)
}

func TestFallbackPrefersQAWhenPrimaryIsCoder(t *testing.T) {
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindCoder: {coderAgent("coder-1")},
		models.AgentKindQA:    {qaAgent("qa-1")},
	}})
	d := r.Route(models.Task{Complexity: 2, CurrentIteration: 0})
	assert.Equal(t, "coder-1", d.AgentID)
	assert.Equal(t, "qa-1", d.FallbackAgentID)
}

func TestFallbackEmptyWhenNoOtherAgentIdle(t *testing.T) {
	r := New(fakeFinder{byKind: map[models.AgentKind][]models.Agent{
		models.AgentKindCoder: {coderAgent("coder-1")},
	}})
	d := r.Route(models.Task{Complexity: 2, CurrentIteration: 0})
	assert.Empty(t, d.FallbackAgentID)
}

func TestRouteDecomposition(t *testing.T) {
	tier, cost := RouteDecomposition(8)
	assert.Equal(t, models.TierPremium, tier)
	assert.InDelta(t, 0.04, cost, 0.0001)

	tier, cost = RouteDecomposition(7.9)
	assert.Equal(t, models.TierMid, tier)
	assert.InDelta(t, 0.005, cost, 0.0001)
}

func TestRouteReviewScalesWithTaskCount(t *testing.T) {
	tier, cost := RouteReview(5)
	assert.Equal(t, models.TierPremium, tier)
	assert.InDelta(t, 0.1, cost, 0.0001)
}
