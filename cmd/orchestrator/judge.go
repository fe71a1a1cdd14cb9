package main

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy/pkg/agentrt"
)

// runtimeJudge adapts the Agent Runtime's multi-step Execute contract into
// the single prompt/response exchange pkg/review.Judge and pkg/complexity.Judge
// expect. Both judge calls are modeled as a one-shot premium-tier task with
// no tool events, reusing the same external collaborator boundary the
// Executor drives full coding tasks through rather than adding a second
// runtime contract.
type runtimeJudge struct {
	runtime agentrt.Runtime
}

func newRuntimeJudge(runtime agentrt.Runtime) *runtimeJudge {
	return &runtimeJudge{runtime: runtime}
}

// Review implements pkg/review.Judge.
func (j *runtimeJudge) Review(ctx context.Context, prompt string) (string, error) {
	return j.ask(ctx, "judge-review", prompt)
}

// Assess implements pkg/complexity.Judge.
func (j *runtimeJudge) Assess(ctx context.Context, title, description string) (string, error) {
	prompt := fmt.Sprintf("Assess the complexity of this task on a 1-10 scale.\nTitle: %s\nDescription: %s\nRespond with JSON: {\"complexity\": <int>, \"reasoning\": \"...\", \"factors\": [...]}", title, description)
	return j.ask(ctx, "judge-complexity", prompt)
}

func (j *runtimeJudge) ask(ctx context.Context, taskID, prompt string) (string, error) {
	result, err := j.runtime.Execute(ctx, agentrt.Request{
		TaskID:          taskID,
		AgentID:         taskID,
		TaskDescription: prompt,
		UsePremium:      true,
	}, func(agentrt.ToolEvent) {})
	if err != nil {
		return "", fmt.Errorf("judge call failed: %w", err)
	}
	return result.Output.ActualOutput, nil
}
