package config

// DefaultConfig returns the orchestrator's built-in defaults, matching the
// values spec.md's component tables assume (resource pool: local=1,
// premium_cloud=2; sweeper: 60s interval, 10min timeout; budget warning at
// 80% of the daily limit).
func DefaultConfig() *Config {
	return &Config{
		DailyBudgetCents:       1000,
		BudgetWarningThreshold: 0.8,

		LocalSlots:   1,
		PremiumSlots: 2,

		TaskTimeoutMS:     10 * 60 * 1000,
		SweeperIntervalMS: 60 * 1000,

		RateLimitWindowMS: 60 * 1000,
		RateLimitMax:      120,

		CORSOrigins: []string{},

		DefaultMaxIterations: 5,

		ReviewMinComplexity: 3,
		EnableReviews:       true,
		EnableJudgeAssessor: false,

		AgentRuntimeBaseURL:    "http://localhost:8090",
		AgentRuntimeTimeoutMS:  120 * 1000,
		AssignerPollIntervalMS: 1000,

		ServerAddr: ":8080",
	}
}
