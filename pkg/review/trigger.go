// Package review implements the Code-Review Trigger: on a task's
// successful completion, decide whether it warrants a premium-tier peer
// review, run it, and persist the verdict (SPEC_FULL.md §4.11).
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/tarsy/pkg/budget"
	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/router"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

// DefaultMinComplexity is the complexity floor below which a completed
// task is never reviewed.
const DefaultMinComplexity = 3.0

// skippedTaskTypes never get a review regardless of complexity.
var skippedTaskTypes = map[models.TaskType]bool{
	models.TaskTypeReview:        true,
	models.TaskTypeDecomposition: true,
	models.TaskTypeDebug:         true,
}

// Judge is the premium-tier review model. A dedicated contract (distinct
// from pkg/agentrt.Runtime, which drives a full coding task) because a
// review is a single prompt/response exchange, not a multi-step tool loop.
type Judge interface {
	Review(ctx context.Context, prompt string) (string, error)
}

// Trigger evaluates completed tasks and schedules reviews for the ones
// that qualify.
type Trigger struct {
	tasks    store.TaskStore
	reviews  store.CodeReviewStore
	logs     store.ExecutionLogStore
	dispatch *events.Dispatcher
	judge    Judge
	guard    *budget.Guard

	minComplexity float64
	enabled       bool
}

// New constructs a Trigger. enabled corresponds to the enable_reviews
// config option; minComplexity to review_min_complexity (0 selects
// DefaultMinComplexity).
func New(tasks store.TaskStore, reviews store.CodeReviewStore, logs store.ExecutionLogStore, dispatch *events.Dispatcher, judge Judge, guard *budget.Guard, minComplexity float64, enabled bool) *Trigger {
	if minComplexity <= 0 {
		minComplexity = DefaultMinComplexity
	}
	return &Trigger{
		tasks:         tasks,
		reviews:       reviews,
		logs:          logs,
		dispatch:      dispatch,
		judge:         judge,
		guard:         guard,
		minComplexity: minComplexity,
		enabled:       enabled,
	}
}

// OnTaskCompleted implements pkg/queue.ReviewTrigger. It is called by the
// Executor immediately after a task transitions to completed.
func (t *Trigger) OnTaskCompleted(ctx context.Context, task models.Task) {
	log := slog.With("task_id", task.ID)

	if !t.shouldReview(ctx, task, log) {
		return
	}

	if t.guard != nil && t.guard.IsPremiumBlocked() {
		log.Info("review: skipped, premium tier blocked by budget guard")
		return
	}

	tier, estCost := router.RouteReview(1)
	_ = tier // always premium; kept for clarity at the call site

	review := &models.CodeReview{
		ID:     task.ID + "-review",
		TaskID: task.ID,
		Status: models.ReviewStatusPending,
	}
	if err := t.reviews.CreateReview(ctx, review); err != nil {
		log.Error("review: failed to create review record", "error", err)
		return
	}

	prompt, err := t.buildPrompt(ctx, task)
	if err != nil {
		log.Error("review: failed to build prompt", "error", err)
		return
	}

	raw, err := t.judge.Review(ctx, prompt)
	if err != nil {
		log.Error("review: judge call failed", "error", err, "est_cost", estCost)
		return
	}

	output, err := parseJudgeReviewOutput(raw)
	if err != nil {
		log.Error("review: malformed judge output", "error", err)
		return
	}

	review.QualityScore = clamp(output.QualityScore, 0, 10)
	review.Findings = output.Findings
	review.Summary = output.Summary
	review.Approved = output.Approved || (review.QualityScore >= 7 && !review.HasBlockingFindings())
	if review.HasBlockingFindings() {
		review.Approved = false
	}
	if review.Approved {
		review.Status = models.ReviewStatusApproved
	} else if review.HasBlockingFindings() {
		review.Status = models.ReviewStatusRejected
	} else {
		review.Status = models.ReviewStatusNeedsFixes
	}

	if err := t.reviews.UpdateReview(ctx, review); err != nil {
		log.Error("review: failed to persist review verdict", "error", err)
		return
	}

	t.dispatch.ReviewCompleted(ctx, events.ReviewCompletedPayload{
		Type:         events.EventTypeReviewDone,
		TaskID:       task.ID,
		ReviewID:     review.ID,
		QualityScore: review.QualityScore,
		Approved:     review.Approved,
		Timestamp:    events.Now(),
	})
}

// shouldReview applies the three skip conditions in order.
func (t *Trigger) shouldReview(ctx context.Context, task models.Task, log *slog.Logger) bool {
	if !t.enabled {
		return false
	}
	if skippedTaskTypes[task.TaskType] {
		return false
	}
	if task.Complexity < t.minComplexity {
		return false
	}
	if _, err := t.reviews.GetReviewForTask(ctx, task.ID); err == nil {
		log.Debug("review: already exists, skipping")
		return false
	} else if err != store.ErrNotFound {
		log.Error("review: failed to check existing review", "error", err)
		return false
	}
	return true
}

// buildPrompt extracts the produced code from the task's ExecutionLog and
// composes the fixed schema prompt the premium model is asked to answer.
func (t *Trigger) buildPrompt(ctx context.Context, task models.Task) (string, error) {
	logs, err := t.logs.ListLogsForTask(ctx, task.ID)
	if err != nil {
		return "", err
	}

	var code strings.Builder
	for _, entry := range logs {
		if entry.Action != "file_write" && entry.Action != "file_edit" {
			continue
		}
		fmt.Fprintf(&code, "--- %s ---\n%s\n\n", entry.Input, entry.Observation)
	}

	var actual string
	if task.Result != nil {
		actual = task.Result.ActualOutput
	}

	return fmt.Sprintf(`You are reviewing the output of a completed engineering task.

Task: %s
%s

Produced changes:
%s

Final output:
%s

Respond with a single JSON object matching exactly this schema:
{"qualityScore": <0-10 number>, "findings": [{"severity": "critical|high|medium|low", "category": "string", "description": "string", "suggestion": "string"}], "summary": "string", "approved": <bool>}`,
		task.Title, task.Description, code.String(), actual), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseJudgeReviewOutput tolerantly extracts a JudgeReviewOutput from raw
// model output: strips markdown code fences and extracts the first
// balanced JSON object, mirroring pkg/complexity's judge-output parsing so
// prose or formatting around the JSON doesn't break the review pipeline.
func parseJudgeReviewOutput(raw string) (*models.JudgeReviewOutput, error) {
	candidate := stripFences(raw)
	objectText, err := extractFirstJSONObject(candidate)
	if err != nil {
		return nil, err
	}

	var out models.JudgeReviewOutput
	if err := json.Unmarshal([]byte(objectText), &out); err != nil {
		return nil, fmt.Errorf("review output is not valid JSON: %w", err)
	}
	return &out, nil
}

func stripFences(s string) string {
	const fence = "```"
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fence) {
		return s
	}
	s = strings.TrimPrefix(s, fence)
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "\n")
	if idx := strings.LastIndex(s, fence); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func extractFirstJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in review output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in review output")
}
