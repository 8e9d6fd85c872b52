package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_DB", "")
	t.Setenv("WORKFLOW_MAX_RETRIES", "")
	t.Setenv("WORKFLOW_STEP_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workflow.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Workflow.StepTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Workflow.RetryInitialInterval())
	assert.Equal(t, 72*time.Hour, cfg.Workflow.StepLogTTL())
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 3*time.Second, cfg.Redis.PingTimeout())
}

func TestLoadLoggerModeFollowsAppEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Logger.Development)

	t.Setenv("APP_ENV", "Local")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Logger.Development)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKFLOW_MAX_RETRIES", "5")
	t.Setenv("WORKFLOW_WORKERS", "not-a-number")
	t.Setenv("ANALYSIS_ENDPOINT", "http://llm.local/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Workflow.MaxRetries)
	assert.Equal(t, 4, cfg.Workflow.Workers)
	assert.Equal(t, "http://llm.local", cfg.Analysis.Endpoint)
	assert.True(t, cfg.Analysis.Enabled())
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "abc")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNegativeRetries(t *testing.T) {
	t.Setenv("WORKFLOW_MAX_RETRIES", "-1")

	_, err := Load()
	require.Error(t, err)
}
