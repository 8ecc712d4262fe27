package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "mem", cfg.Store.Backend)
	assert.Equal(t, DefaultDerivedFactLimit, cfg.Eval.DerivedFactLimit)
	assert.Equal(t, "30s", cfg.Eval.QueryTimeout)
	assert.False(t, cfg.Logging.Debug)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Store.Backend, cfg.Store.Backend)
}

func TestLoad_RoundTripsThroughSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlc.yaml")

	cfg := DefaultConfig()
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = "facts.db"
	cfg.Eval.MaxIterations = 1000
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", loaded.Store.Backend)
	assert.Equal(t, "facts.db", loaded.Store.SQLitePath)
	assert.Equal(t, 1000, loaded.Eval.MaxIterations)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("DLC_DEBUG enables logging", func(t *testing.T) {
		t.Setenv("DLC_DEBUG", "1")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Logging.Debug)
	})

	t.Run("DLC_STORE_BACKEND overrides backend", func(t *testing.T) {
		t.Setenv("DLC_STORE_BACKEND", "sqlite")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "sqlite", cfg.Store.Backend)
	})
}

func TestGetQueryTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Eval.QueryTimeout = "5s"
	assert.Equal(t, 5*time.Second, cfg.GetQueryTimeout())

	cfg.Eval.QueryTimeout = "not-a-duration"
	assert.Equal(t, 30*time.Second, cfg.GetQueryTimeout())
}

func TestValidate(t *testing.T) {
	t.Run("mem backend is always valid", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.Validate())
	})

	t.Run("unknown backend rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store.Backend = "postgres"
		require.Error(t, cfg.Validate())
	})

	t.Run("sqlite backend requires a path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store.Backend = "sqlite"
		require.Error(t, cfg.Validate())

		cfg.Store.SQLitePath = "facts.db"
		require.NoError(t, cfg.Validate())
	})
}
