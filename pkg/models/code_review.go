package models

import "time"

// ReviewStatus is the lifecycle state of a CodeReview.
type ReviewStatus string

// Recognized review statuses.
const (
	ReviewStatusPending    ReviewStatus = "pending"
	ReviewStatusApproved   ReviewStatus = "approved"
	ReviewStatusNeedsFixes ReviewStatus = "needs_fixes"
	ReviewStatusRejected   ReviewStatus = "rejected"
)

// FindingSeverity is how serious a review Finding is.
type FindingSeverity string

// Recognized finding severities.
const (
	SeverityCritical FindingSeverity = "critical"
	SeverityHigh     FindingSeverity = "high"
	SeverityMedium   FindingSeverity = "medium"
	SeverityLow      FindingSeverity = "low"
)

// Finding is one issue raised by a CodeReview.
type Finding struct {
	Severity    FindingSeverity `json:"severity"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Suggestion  string          `json:"suggestion,omitempty"`
}

// CodeReview records a premium-tier peer review of a completed Task.
type CodeReview struct {
	ID            string       `json:"id" gorm:"primaryKey"`
	TaskID        string       `json:"task_id" gorm:"index"`
	ReviewTaskID  string       `json:"review_task_id"`
	QualityScore  float64      `json:"quality_score"` // 0..10
	Findings      []Finding    `json:"findings" gorm:"serializer:json"`
	Summary       string       `json:"summary,omitempty"`
	Approved      bool         `json:"approved"`
	Status        ReviewStatus `json:"status"`
	CostInputTok  int          `json:"cost_input_tokens"`
	CostOutputTok int          `json:"cost_output_tokens"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasBlockingFindings reports whether any finding is critical or high
// severity — used to compute the default Approved value.
func (r *CodeReview) HasBlockingFindings() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical || f.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// JudgeReviewOutput is the tolerant-parsed JSON schema the premium review
// model is prompted to return: {qualityScore, findings[], summary, approved}.
type JudgeReviewOutput struct {
	QualityScore float64   `json:"qualityScore"`
	Findings     []Finding `json:"findings"`
	Summary      string    `json:"summary"`
	Approved     bool      `json:"approved"`
}
