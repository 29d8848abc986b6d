package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "0.0.0.0:3001", cfg.Addr())
	assert.Equal(t, 3, cfg.NavAttempts)
	assert.Equal(t, 2*time.Second, cfg.NavBackoff)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout)
	assert.Equal(t, 10*time.Second, cfg.ElementTimeout)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ReapInterval)
}

func TestParseEnvironment(t *testing.T) {
	cfg, err := Parse(nil, env(map[string]string{
		"PORT":         "8080",
		"NATS_URL":     "nats://127.0.0.1:4222",
		"HUMANIZE":     "false",
		"IDLE_TIMEOUT": "10m",
		"REAP_BY":      "Identifier",
		"LOG_LEVEL":    "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NatsURL)
	assert.False(t, cfg.Humanize)
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, "identifier", cfg.ReapBy)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseFlagsOverrideEnvironment(t *testing.T) {
	cfg, err := Parse(
		[]string{"--port", "9000", "--nav-attempts=5", "--headless=false", "--log-format", "console"},
		env(map[string]string{"PORT": "8080", "NAV_ATTEMPTS": "2"}),
	)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5, cfg.NavAttempts)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "bad env int", env: map[string]string{"PORT": "http"}},
		{name: "bad env duration", env: map[string]string{"NAV_TIMEOUT": "30"}},
		{name: "unknown flag", args: []string{"--verbose"}},
		{name: "port out of range", args: []string{"--port", "70000"}},
		{name: "zero attempts", args: []string{"--nav-attempts", "0"}},
		{name: "unknown reap source", args: []string{"--reap-by", "created"}},
		{name: "unknown log format", args: []string{"--log-format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestParseHelpSkipsValidation(t *testing.T) {
	cfg, err := Parse([]string{"--help", "--port", "0"}, nil)
	require.NoError(t, err)
	assert.True(t, cfg.ShowHelp)
}
