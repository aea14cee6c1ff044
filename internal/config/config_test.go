package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "shhh")
	t.Setenv("SANDBOX_API_URL", "https://sandbox.example.com")
	t.Setenv("ANALYZER_URL", "https://analyzer.example.com")
}

func TestLoadConfig_DefaultsAndRequired(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(12345), cfg.GitHub.AppID)
	assert.Equal(t, "shhh", cfg.GitHub.WebhookSecret)
	assert.Equal(t, "https://sandbox.example.com", cfg.Sandbox.APIURL)
	assert.Equal(t, 5, cfg.Review.MaxWorkers)
	assert.Equal(t, 20, cfg.Review.MaxInlineComments)
	assert.Equal(t, 1, cfg.Review.CreditCost)
	assert.Equal(t, 2*time.Minute, cfg.Sandbox.ExecTimeout)
	assert.Equal(t, 256*1024, cfg.Analyzer.MaxDiffBytes)
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_WORKERS", "12")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 12, cfg.Review.MaxWorkers)
}

func TestLoadConfig_MissingRequiredFails(t *testing.T) {
	tests := []struct {
		name string
		omit string
	}{
		{name: "app id", omit: "GITHUB_APP_ID"},
		{name: "webhook secret", omit: "GITHUB_WEBHOOK_SECRET"},
		{name: "sandbox url", omit: "SANDBOX_API_URL"},
		{name: "analyzer url", omit: "ANALYZER_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.omit, "")

			_, err := LoadConfig()

			assert.Error(t, err)
		})
	}
}
