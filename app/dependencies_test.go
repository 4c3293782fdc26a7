package app

import (
	"context"
	"testing"

	"github.com/clearwatch/clearwatch/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Log: config.LogConfig{Level: "info", Format: "json"},
		Events: config.EventsConfig{
			Dir: "events", RotateEveryMinutes: 10, RotateMaxMB: 5,
			FilenameFormat: "2006-01-02_15-04-05",
		},
		Worker: config.WorkerConfig{
			Model: "llama3", OllamaURL: "http://127.0.0.1:11434",
			WindowMinutes: 10, MaxLinesPerWindow: 500, ReportsDir: "reports",
		},
		API: config.APIConfig{Enabled: true, Host: "127.0.0.1", Port: 8080},
	}
}

func TestNewDependenciesWithoutSecret(t *testing.T) {
	deps := NewDependencies(testConfig(), zap.NewNop())

	assert.NotNil(t, deps.Store)
	assert.NotNil(t, deps.Analyst)
	assert.Nil(t, deps.AuthMiddleware, "no token secret means no auth middleware")
	assert.NoError(t, deps.Close(context.Background()))
}

func TestNewDependenciesWithSecret(t *testing.T) {
	cfg := testConfig()
	cfg.API.TokenSecret = "s3cret"

	deps := NewDependencies(cfg, zap.NewNop())
	assert.NotNil(t, deps.AuthMiddleware)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
