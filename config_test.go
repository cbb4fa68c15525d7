package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/server/internal/core"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, core.Development, cfg.Env())
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 2, cfg.Classifier.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Classifier.RetryDelay)
	assert.Equal(t, 168*time.Hour, cfg.Conversation.TTL)
	assert.Equal(t, 20, cfg.Conversation.History.MaxTurns)
	assert.Equal(t, 1000, cfg.FileQA.ChunkSize)
	assert.Equal(t, 3, cfg.FileQA.TopK)
	assert.Equal(t, 10, cfg.Debate.FreeRounds)
	assert.InDelta(t, 0.6, float64(cfg.Debate.Temperature), 1e-6)
	assert.Zero(t, cfg.AskTimeout)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfigPrefixesModelGroups(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CLASSIFIER_MODEL", "gemini-2.5-flash-lite")
	t.Setenv("CLASSIFIER_MAX_ATTEMPTS", "3")
	t.Setenv("RESPONSE_MODEL", "gemini-2.5-pro")
	t.Setenv("AGENT_TEMPERATURE", "0.7")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Classifier.Model)
	assert.Equal(t, 3, cfg.Classifier.MaxAttempts)
	assert.Equal(t, "gemini-2.5-pro", cfg.Response.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.Agent.Model)
	assert.InDelta(t, 0.7, float64(cfg.Agent.Temperature), 1e-6)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	// godotenv never overrides variables that are already set
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	t.Setenv("ENVIRONMENT", "production")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_API_KEY=from-file\nENVIRONMENT=staging\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, core.Production, cfg.Env())
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")

	_, err := LoadConfig("")
	assert.Error(t, err)
}
