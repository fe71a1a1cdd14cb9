package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DailyBudgetCents, cfg.DailyBudgetCents)
	assert.Equal(t, DefaultConfig().LocalSlots, cfg.LocalSlots)
}

func TestLoad_OverridesMergeOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	content := "api_key: ${TEST_CONFIG_API_KEY}\ndaily_budget_cents: 500\npremium_slots: 4\nagent_runtime_base_url: http://runtime.local:9000\nserver_addr: :9090\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TEST_CONFIG_API_KEY", "sekret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sekret", cfg.APIKey)
	assert.EqualValues(t, 500, cfg.DailyBudgetCents)
	assert.Equal(t, 4, cfg.PremiumSlots)
	// untouched fields keep their defaults
	assert.Equal(t, DefaultConfig().LocalSlots, cfg.LocalSlots)
	assert.Equal(t, DefaultConfig().SweeperIntervalMS, cfg.SweeperIntervalMS)
}

func TestLoad_InvalidOverrideFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	content := "api_key: k\nbudget_warning_threshold: 1.5\nagent_runtime_base_url: http://runtime.local\nserver_addr: :9090\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int64(600000), cfg.TaskTimeoutMS)
	assert.Equal(t, cfg.TaskTimeout().Milliseconds(), cfg.TaskTimeoutMS)
}
