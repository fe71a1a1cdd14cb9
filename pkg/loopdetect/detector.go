// Package loopdetect watches the sequence of tool actions within a single
// run and classifies pathological repetition: exact duplicates, near-
// duplicate thrashing, tool-specific overuse, and a hard global cap.
//
// A Detector holds state for exactly one run — it is never shared across
// tasks — matching the spec's "per-run bounded history" contract.
package loopdetect

import "strings"

// historySize is how many recent actions are retained for duplicate/
// similarity comparisons.
const historySize = 20

// Verdict classifies one proposed tool action.
type Verdict string

// Recognized verdicts. Ok and Warn let the action through (Warn is
// advisory only); Block refuses the action and returns an observation to
// the agent; Abort terminates the run with a fatal classification.
const (
	VerdictOK    Verdict = "ok"
	VerdictWarn  Verdict = "warn"
	VerdictBlock Verdict = "block"
	VerdictAbort Verdict = "abort"
)

// Per-tool call caps within a single run. Exceeding a cap blocks further
// calls to that tool (but not the run as a whole — that's the global cap).
var toolCaps = map[string]int{
	"file_write": 3,
	"file_edit":  5,
	"shell_run":  10,
}

// globalCap is the maximum number of tool calls a single run may perform.
// Exceeding it is a fatal abort, independent of per-tool caps.
const globalCap = 50

// action is one recorded (tool, normalized input) pair.
type action struct {
	tool  string
	input string // normalized
}

// Detector tracks the tool-call history of one run.
type Detector struct {
	history   []action
	toolCount map[string]int
	total     int
}

// New constructs a Detector for a fresh run.
func New() *Detector {
	return &Detector{
		toolCount: make(map[string]int),
	}
}

// Result is the outcome of evaluating one proposed action, including enough
// detail for the Executor to build a structured observation on Block/Abort.
type Result struct {
	Verdict Verdict
	Reason  string
}

// Evaluate classifies a proposed (tool, input) action against this run's
// history, then records it (even if blocked — a blocked action still counts
// toward tool and global caps, since the agent did attempt it).
func (d *Detector) Evaluate(tool, input string) Result {
	normalized := normalize(input)
	d.total++

	if d.total > globalCap {
		return Result{Verdict: VerdictAbort, Reason: "global tool-call cap exceeded"}
	}

	// Exact duplicate: this (tool, input) pair has already occurred at least
	// twice among the last 3 entries, so this call would be its 3rd
	// occurrence overall — the 2nd occurrence still goes through.
	d.toolCount[tool]++
	if d.exactDuplicateCountInLast(tool, normalized, 3) >= 2 {
		d.record(tool, normalized)
		return Result{Verdict: VerdictBlock, Reason: "exact duplicate action repeated"}
	}

	if cap, ok := toolCaps[tool]; ok && d.toolCount[tool] > cap {
		d.record(tool, normalized)
		return Result{Verdict: VerdictBlock, Reason: "tool call cap exceeded for " + tool}
	}

	if d.similarToAnyInLast(normalized, 5, 0.8) {
		d.record(tool, normalized)
		return Result{Verdict: VerdictWarn, Reason: "similar action repeated recently"}
	}

	if tool == "shell_run" && d.shellNearDuplicateInLast(normalized, 5) {
		d.record(tool, normalized)
		return Result{Verdict: VerdictWarn, Reason: "near-duplicate shell command repeated recently"}
	}

	d.record(tool, normalized)
	return Result{Verdict: VerdictOK}
}

// record appends an action to the bounded history ring.
func (d *Detector) record(tool, normalizedInput string) {
	d.history = append(d.history, action{tool: tool, input: normalizedInput})
	if len(d.history) > historySize {
		d.history = d.history[len(d.history)-historySize:]
	}
}

// exactDuplicateCountInLast counts how many times (tool, input) appears
// verbatim in the last n history entries.
func (d *Detector) exactDuplicateCountInLast(tool, input string, n int) int {
	count := 0
	for _, a := range d.lastN(n) {
		if a.tool == tool && a.input == input {
			count++
		}
	}
	return count
}

// similarToAnyInLast reports whether input's token-Jaccard similarity to any
// of the last n history entries exceeds threshold.
func (d *Detector) similarToAnyInLast(input string, n int, threshold float64) bool {
	tokens := tokenSet(input)
	for _, a := range d.lastN(n) {
		if jaccard(tokens, tokenSet(a.input)) > threshold {
			return true
		}
	}
	return false
}

// shellNearDuplicateInLast reports whether input is a character-level near
// duplicate of any recent shell_run command (see similarity.go).
func (d *Detector) shellNearDuplicateInLast(input string, n int) bool {
	for _, a := range d.lastN(n) {
		if a.tool != "shell_run" {
			continue
		}
		if shellCommandsNearDuplicate(input, a.input) {
			return true
		}
	}
	return false
}

func (d *Detector) lastN(n int) []action {
	if len(d.history) <= n {
		return d.history
	}
	return d.history[len(d.history)-n:]
}

// normalize lowercases and collapses whitespace so trivially-reformatted
// repeats (extra spaces, different casing) still count as duplicates.
func normalize(input string) string {
	return strings.Join(strings.Fields(strings.ToLower(input)), " ")
}

// tokenSet splits a normalized string into a set of unique whitespace tokens.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes the Jaccard similarity coefficient |A∩B| / |A∪B| over two
// token sets. Returns 0 if both sets are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
