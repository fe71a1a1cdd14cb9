package loopdetect

import "github.com/sergi/go-diff/diffmatchpatch"

// shellCommandsNearDuplicate reports whether two shell_run inputs are a
// near-duplicate: the agent re-ran "the same" command with a cosmetic
// tweak (quoting, a flag reorder, a trailing newline). Jaccard-over-tokens
// (used for general similarity) under-counts this case because shell
// commands tokenize into very few words; a character-level diff catches it.
//
// Uses the same edit-distance approach as the dashboard's diff preview
// (see internal/ui diff rendering in the TUI examples this orchestrator's
// pack was drawn from) rather than reinventing Levenshtein distance.
func shellCommandsNearDuplicate(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	editDistance := dmp.DiffLevenshtein(diffs)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return false
	}
	similarity := 1.0 - float64(editDistance)/float64(maxLen)
	return similarity > 0.85
}
