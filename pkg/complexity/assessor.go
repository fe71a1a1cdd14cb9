package complexity

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// Assessor computes a Task's complexity from the router heuristic and,
// if configured, an optional judge LLM pass, per SPEC_FULL.md §4.5.
type Assessor struct {
	judge        Judge // nil disables the judge pass entirely
	judgeEnabled bool
}

// NewAssessor constructs an Assessor. Pass a nil judge (or judgeEnabled =
// false) to always use the router heuristic alone.
func NewAssessor(judge Judge, judgeEnabled bool) *Assessor {
	return &Assessor{judge: judge, judgeEnabled: judgeEnabled}
}

// Assessment is the result of scoring one Task.
type Assessment struct {
	Complexity float64
	Source     models.ComplexitySource
	Reasoning  string
}

// Assess scores a task, reconciling the router heuristic with the judge's
// opinion (if available) per the rules in SPEC_FULL.md §4.5.
func (a *Assessor) Assess(ctx context.Context, in Input) Assessment {
	routerScore, routerReasoning := Heuristic(in)

	if !a.judgeEnabled || a.judge == nil {
		return Assessment{Complexity: routerScore, Source: models.ComplexitySourceRouter, Reasoning: routerReasoning}
	}

	raw, err := a.judge.Assess(ctx, in.Title, in.Description)
	if err != nil {
		slog.Warn("complexity judge call failed, falling back to router score", "error", err)
		return Assessment{Complexity: routerScore, Source: models.ComplexitySourceRouter, Reasoning: routerReasoning}
	}

	judged, err := parseJudgeOutput(raw)
	if err != nil {
		slog.Warn("complexity judge output unparseable, falling back to router score", "error", err)
		return Assessment{Complexity: routerScore, Source: models.ComplexitySourceRouter, Reasoning: routerReasoning}
	}

	return reconcile(routerScore, routerReasoning, float64(judged.Complexity), judged.Reasoning)
}

// reconcile combines the router and judge scores per the diff-based rule
// ladder in SPEC_FULL.md §4.5.
func reconcile(routerScore float64, routerReasoning string, judgeScore float64, judgeReasoning string) Assessment {
	diff := judgeScore - routerScore

	var final float64
	switch {
	case diff >= 2:
		final = judgeScore
	case diff <= -2:
		final = 0.6*routerScore + 0.4*judgeScore
	default:
		final = (routerScore + judgeScore) / 2
	}

	final = clamp(final, 1, 10)

	return Assessment{
		Complexity: round1(final),
		Source:     models.ComplexitySourceDual,
		Reasoning:  "router: " + routerReasoning + " | judge: " + judgeReasoning,
	}
}
