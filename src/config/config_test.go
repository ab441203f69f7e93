package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv(APIKeyEnvVar, "test_api_key")
	t.Setenv("MODEL", "test_model")
	t.Setenv("TARGET_LANGUAGE", "Spanish")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("HOTKEY", "Ctrl+Shift+T")
	t.Setenv("PIXEL_RATIO", "2")
	t.Setenv("PANEL_TIMEOUT_SEC", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test_api_key", cfg.APIKey)
	assert.Equal(t, "test_model", cfg.Model)
	assert.Equal(t, "Spanish", cfg.TargetLanguage)
	assert.True(t, cfg.EnableFileLogging)
	assert.Equal(t, "Ctrl+Shift+T", cfg.Hotkey)
	assert.Equal(t, 2.0, cfg.PixelRatio)
	assert.Equal(t, 15*time.Second, cfg.PanelTimeout())
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"MODEL", "TARGET_LANGUAGE", "HOTKEY", "REQUEST_TIMEOUT_SEC", "PIXEL_RATIO", "MAX_IMAGE_EDGE", "PANEL_TIMEOUT_SEC", "NATIVE_OVERLAY"} {
		t.Setenv(k, "")
	}
	t.Setenv("SETTINGS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultLanguage, cfg.TargetLanguage)
	assert.Equal(t, DefaultHotkey, cfg.Hotkey)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 1.0, cfg.PixelRatio)
	assert.Equal(t, DefaultMaxEdge, cfg.MaxImageEdge)
	assert.Zero(t, cfg.PanelTimeout())
	assert.Equal(t, "settings.yaml", filepath.Base(cfg.SettingsFile))
	assert.True(t, cfg.NativeOverlay)
}

func TestNativeOverlayCanBeDisabled(t *testing.T) {
	t.Setenv("NATIVE_OVERLAY", "False")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.NativeOverlay)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SEC", "-3")
	t.Setenv("PIXEL_RATIO", "abc")
	t.Setenv("DISPLAY_INDEX", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeoutSec, cfg.RequestTimeoutSec)
	assert.Equal(t, 1.0, cfg.PixelRatio)
	assert.Equal(t, 0, cfg.DisplayIndex)
}

func TestAPIKeyFileWins(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "gemini")
	require.NoError(t, os.WriteFile(keyFile, []byte("  from-file\n"), 0o600))
	t.Setenv(APIKeyEnvVar, "from-env")

	cfg, err := LoadWithOptions(LoadOptions{APIKeyPathOverride: keyFile, SettingsOverride: "/tmp/s.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, keyFile, cfg.APIKeyPath)
	assert.Equal(t, "/tmp/s.yaml", cfg.SettingsFile)

	cfg, err = LoadWithOptions(LoadOptions{APIKeyPathOverride: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
}

func TestDotenvFromConfigPath(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TARGET_LANGUAGE=German\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, envFile)
	t.Setenv("TARGET_LANGUAGE", "")
	os.Unsetenv("TARGET_LANGUAGE")
	t.Cleanup(func() { os.Unsetenv("TARGET_LANGUAGE") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "German", cfg.TargetLanguage)
}
