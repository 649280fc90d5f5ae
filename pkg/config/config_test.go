package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ZAPDESK_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "55", cfg.Session.CountryPrefix)
	assert.Equal(t, 12, cfg.Session.NumberLength)
	assert.True(t, cfg.Session.ReconnectOnDrop)
	assert.Equal(t, 100, cfg.Session.LookbackWindow)
	assert.Equal(t, "0 3 * * *", cfg.Cache.PruneSchedule)
	assert.Equal(t, 30*24*time.Hour, cfg.Cache.MaxAge)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("ZAPDESK_JWT_SECRET", "test-secret")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("ZAPDESK_JWT_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "zapdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 8080
allowed_origin: https://crm.example.com
session:
  reconnect_on_drop: false
  lookback_window: 25
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://crm.example.com", cfg.AllowedOrigin)
	assert.False(t, cfg.Session.ReconnectOnDrop)
	assert.Equal(t, 25, cfg.Session.LookbackWindow)
	// Untouched keys keep their defaults.
	assert.Equal(t, "55", cfg.Session.CountryPrefix)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zapdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8080\n"), 0o644))

	t.Setenv("ZAPDESK_JWT_SECRET", "test-secret")
	t.Setenv("ZAPDESK_PORT", "9090")
	t.Setenv("ZAPDESK_SESSION_LOOKBACK_WINDOW", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 10, cfg.Session.LookbackWindow)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("ZAPDESK_JWT_SECRET", "")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("ZAPDESK_JWT_SECRET", "test-secret")
		t.Setenv("ZAPDESK_PORT", "99999")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Setenv("ZAPDESK_JWT_SECRET", "test-secret")
		path := filepath.Join(t.TempDir(), "zapdesk.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [oops\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}
