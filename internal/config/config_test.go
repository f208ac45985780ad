package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskcal", "CalendarData.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, ModeFile, cfg.Settings.StorageMode)
	assert.Equal(t, 4, cfg.Settings.Weeks)
	assert.Equal(t, "", cfg.GlobalMemo)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CalendarData.yaml")

	cfg := DefaultConfig()
	cfg.Settings.Weeks = 6
	cfg.Settings.StorageMode = ModeRelational
	cfg.Settings.Locked = true
	cfg.Settings.FontColorHigh = "#ff0000"
	cfg.GlobalMemo = "buy milk"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Settings.Weeks)
	assert.Equal(t, ModeRelational, got.Settings.StorageMode)
	assert.True(t, got.Settings.Locked)
	assert.Equal(t, "#ff0000", got.Settings.FontColorHigh)
	assert.Equal(t, "buy milk", got.GlobalMemo)
}

func TestLoadCorruptFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CalendarData.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: [at all"), 0o600))

	cfg, err := Load(path)
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultConfig().Settings, cfg.Settings)
}

func TestNormalizePartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CalendarData.yaml")
	doc := "version: \"1.0\"\nsettings:\n  weeks: 2\n  storage_mode: carrier-pigeon\nglobal_memo: hi\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Settings.Weeks)
	// Unknown mode falls back to file.
	assert.Equal(t, ModeFile, cfg.Settings.StorageMode)
	// Unset keys take defaults.
	assert.Equal(t, 140, cfg.Settings.CellWidth)
	assert.Equal(t, 0.95, cfg.Settings.Opacity)
	assert.Equal(t, "hi", cfg.GlobalMemo)
}
