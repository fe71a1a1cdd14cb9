package complexity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// JudgeResult is the parsed output of the judge LLM's complexity opinion.
type JudgeResult struct {
	Complexity int      `json:"complexity"`
	Reasoning  string   `json:"reasoning"`
	Factors    []string `json:"factors"`
}

// Judge calls a cheap LLM to produce a second complexity opinion. It is an
// external collaborator — the orchestrator specifies this contract, not the
// judge model's internals (mirrors the Agent Runtime boundary in §6.3).
type Judge interface {
	Assess(ctx context.Context, title, description string) (string, error)
}

var fencedJSONPattern = "```"

// parseJudgeOutput tolerantly extracts a JudgeResult from raw LLM output:
// it strips markdown code fences and extracts the first balanced JSON
// object in the text, so surrounding prose or formatting doesn't break
// parsing. Returns an error if no valid JSON object with the expected
// shape can be found — callers treat that as "judge unavailable".
func parseJudgeOutput(raw string) (*JudgeResult, error) {
	candidate := stripFences(raw)
	objectText, err := extractFirstJSONObject(candidate)
	if err != nil {
		return nil, err
	}

	var result JudgeResult
	if err := json.Unmarshal([]byte(objectText), &result); err != nil {
		return nil, fmt.Errorf("judge output is not valid JSON: %w", err)
	}
	if result.Complexity == 0 && !strings.Contains(objectText, `"complexity"`) {
		return nil, fmt.Errorf("judge output missing complexity field")
	}
	return &result, nil
}

// stripFences removes a leading/trailing ``` or ```json code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fencedJSONPattern) {
		return s
	}
	s = strings.TrimPrefix(s, fencedJSONPattern)
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "\n")
	if idx := strings.LastIndex(s, fencedJSONPattern); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractFirstJSONObject scans s for the first balanced {...} object,
// tolerating braces embedded in string literals.
func extractFirstJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in judge output")
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
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in judge output")
}
