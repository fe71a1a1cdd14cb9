package models

import "time"

// ExecutionLog is one append-only record of a single tool call made during a
// Task run. Step numbers are strictly increasing starting at 1 within a task.
type ExecutionLog struct {
	ID     int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskID string `json:"task_id" gorm:"index"`
	Step   int    `json:"step"`

	Action      string `json:"action"` // tool name
	Input       string `json:"input"`
	Observation string `json:"observation"`

	DurationMS int    `json:"duration_ms"`
	ModelUsed  string `json:"model_used"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	IsLoopDetected bool `json:"is_loop_detected"`

	CreatedAt time.Time `json:"created_at"`
}
