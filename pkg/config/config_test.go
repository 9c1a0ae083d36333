package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MAIN_TABLE", "connective-main")
	t.Setenv("FILES_BUCKET", "connective-files")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "connective-main", cfg.Storage.MainTable)
	assert.Equal(t, "connective-files", cfg.Storage.FilesBucket)
	assert.Equal(t, "us-east-1", cfg.Provider.BedrockRegion)
	assert.Equal(t, 60*time.Second, cfg.Provider.InvokeTimeout)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONNECTIVE_PORT", "8181")
	t.Setenv("CONNECTIVE_LOG_LEVEL", "debug")
	t.Setenv("CONNECTIVE_INVOKE_TIMEOUT", "90s")
	t.Setenv("BEDROCK_REGION", "us-west-2")
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.Provider.InvokeTimeout)
	assert.Equal(t, "us-west-2", cfg.Provider.BedrockRegion)
	assert.Equal(t, "k", cfg.Provider.GeminiAPIKey)
}

func TestLoadConfigMissingTable(t *testing.T) {
	t.Setenv("MAIN_TABLE", "")
	t.Setenv("FILES_BUCKET", "connective-files")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIN_TABLE")
}

func TestValidateRejectsPortCollision(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONNECTIVE_PORT", "9090")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}
