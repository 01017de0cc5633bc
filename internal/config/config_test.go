package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "can0", cfg.Isotp.Interface)
	assert.Equal(t, 50, cfg.Timing.P2Ms)
}

func TestSaveThenLoadServerConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultServerConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Isotp.Interface = "vcan0"

	require.NoError(t, SaveServerConfig(cfg, path))

	loaded, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", loaded.Logging.Level)
	assert.Equal(t, "vcan0", loaded.Isotp.Interface)
}

func TestInvalidLogLevelFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultServerConfig()
	cfg.Logging.Level = "VERBOSE"
	require.NoError(t, SaveServerConfig(cfg, path))

	_, err := LoadServerConfig(path)
	assert.Error(t, err)
}

func TestDefaultClientConfigHasTimeout(t *testing.T) {
	cfg := DefaultClientConfig()
	assert.Equal(t, 1000, cfg.DefaultTimeoutMs)
	assert.Equal(t, 500, cfg.History.MaxEntries)
}
