// Package complexity scores a Task's apparent difficulty on a 1..10 scale,
// combining a cheap deterministic heuristic with an optional LLM judge pass.
package complexity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

var stepPattern = regexp.MustCompile(`(?i)step\s+\d+\s*:`)

var highSignalKeywords = []string{
	"multi-file", "architecture", "design", "refactor", "integrate", "api", "database",
}

var mediumKeywords = []string{
	"test", "verify", "validate", "debug", "fix", "update",
}

var lowKeywords = []string{
	"create", "add", "simple", "basic",
}

// Input bundles everything the router heuristic needs about a Task.
type Input struct {
	Title            string
	Description      string
	TaskType         models.TaskType
	Priority         int
	CurrentIteration int
}

// Heuristic computes the router's deterministic complexity score
// (complexity_source = "router"), per SPEC_FULL.md §4.5.
func Heuristic(in Input) (score float64, reasoning string) {
	text := strings.ToLower(in.Title + " " + in.Description)

	var notes []string

	if n := len(stepPattern.FindAllString(text, -1)); n > 0 {
		delta := 0.5 * float64(n)
		score += delta
		notes = append(notes, fmt.Sprintf("%d numbered step(s) (+%.1f)", n, delta))
	}

	for _, kw := range highSignalKeywords {
		if strings.Contains(text, kw) {
			score += 2
			notes = append(notes, fmt.Sprintf("keyword %q (+2)", kw))
		}
	}
	for _, kw := range mediumKeywords {
		if strings.Contains(text, kw) {
			score += 1
			notes = append(notes, fmt.Sprintf("keyword %q (+1)", kw))
		}
	}
	for _, kw := range lowKeywords {
		if strings.Contains(text, kw) {
			score -= 0.5
			notes = append(notes, fmt.Sprintf("keyword %q (-0.5)", kw))
		}
	}

	switch in.TaskType {
	case models.TaskTypeCode:
		score += 1
		notes = append(notes, "task_type=code (+1)")
	case models.TaskTypeTest:
		score += 1.5
		notes = append(notes, "task_type=test (+1.5)")
	case models.TaskTypeReview:
		score += 2
		notes = append(notes, "task_type=review (+2)")
	}

	priorityBonus := float64(in.Priority) / 10 * 0.5
	score += priorityBonus
	notes = append(notes, fmt.Sprintf("priority %d (+%.2f)", in.Priority, priorityBonus))

	if in.CurrentIteration > 0 {
		delta := 1.5 * float64(in.CurrentIteration)
		score += delta
		notes = append(notes, fmt.Sprintf("current_iteration=%d (+%.1f)", in.CurrentIteration, delta))
	}

	clamped := clamp(score, 1, 10)
	if clamped != score {
		notes = append(notes, fmt.Sprintf("clamped from %.2f", score))
	}

	return round1(clamped), strings.Join(notes, "; ")
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

// round1 rounds to one decimal place. Idempotent: round1(round1(x)) == round1(x).
func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
