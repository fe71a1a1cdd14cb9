package config

import "time"

// Config holds the orchestrator's runtime policy knobs: budget limits,
// resource pool sizing, sweeper timing, review policy, and the HTTP-facing
// settings the Control API needs. Persistence connection settings live in
// pkg/pgstore.Config and are loaded from the environment separately, the
// same split the teacher kept between pkg/config (domain policy) and
// pkg/database (connection plumbing).
type Config struct {
	APIKey string `yaml:"api_key"`

	DailyBudgetCents       int64   `yaml:"daily_budget_cents" validate:"min=0"`
	BudgetWarningThreshold float64 `yaml:"budget_warning_threshold" validate:"gte=0,lte=1"`

	LocalSlots   int `yaml:"local_slots" validate:"min=1"`
	PremiumSlots int `yaml:"premium_slots" validate:"min=1"`

	TaskTimeoutMS     int64 `yaml:"task_timeout_ms" validate:"min=1000"`
	SweeperIntervalMS int64 `yaml:"sweeper_interval_ms" validate:"min=1000"`

	RateLimitWindowMS int64 `yaml:"rate_limit_window_ms" validate:"min=0"`
	RateLimitMax      int   `yaml:"rate_limit_max" validate:"min=0"`

	CORSOrigins []string `yaml:"cors_origins"`

	DefaultMaxIterations int `yaml:"default_max_iterations" validate:"min=1"`

	ReviewMinComplexity float64 `yaml:"review_min_complexity" validate:"gte=0,lte=10"`
	EnableReviews       bool    `yaml:"enable_reviews"`
	EnableJudgeAssessor bool    `yaml:"enable_judge_assessor"`

	AgentRuntimeBaseURL    string `yaml:"agent_runtime_base_url" validate:"required,url"`
	AgentRuntimeTimeoutMS  int64  `yaml:"agent_runtime_timeout_ms" validate:"min=1000"`
	AssignerPollIntervalMS int64  `yaml:"assigner_poll_interval_ms" validate:"min=100"`

	ServerAddr string `yaml:"server_addr" validate:"required"`
}

func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutMS) * time.Millisecond
}

func (c *Config) SweeperInterval() time.Duration {
	return time.Duration(c.SweeperIntervalMS) * time.Millisecond
}

func (c *Config) AgentRuntimeTimeout() time.Duration {
	return time.Duration(c.AgentRuntimeTimeoutMS) * time.Millisecond
}

func (c *Config) AssignerPollInterval() time.Duration {
	return time.Duration(c.AssignerPollIntervalMS) * time.Millisecond
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}
