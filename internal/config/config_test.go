package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, 15*time.Second, cfg.ValidatorTimeout)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadWithoutEnvMatchesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORCH_CALL_TIMEOUT", "10s")
	t.Setenv("ORCH_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched keys keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.ValidatorTimeout)
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("ORCH_CALL_TIMEOUT", "0s")
	_, err := Load()
	assert.Error(t, err)
}
