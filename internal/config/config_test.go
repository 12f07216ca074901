// File: internal/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CLIPDRIVE_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("CLIPDRIVE_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(dir, "run"))
	for _, key := range []string{"CLIPDRIVE_VOLUME_LABEL", "CLIPDRIVE_LOG_LEVEL", "CLIPDRIVE_CLIPBOARD_BACKEND", "CLIPDRIVE_POLL_INTERVAL_MS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestGetConfigPaths(t *testing.T) {
	dir := isolate(t)

	paths, err := GetConfigPaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config", "config.yaml"), paths.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "data", "clipdrive.db"), paths.DBFile)
	assert.Equal(t, filepath.Join(dir, "data", "logs", "clipdrive.log"), paths.LogFile)
	assert.Equal(t, filepath.Join(dir, "run", "clipdrive", "clipdrive.sock"), paths.SocketPath)
	assert.Equal(t, filepath.Join(dir, "run", "clipdrive", "clipdrive.lock"), paths.LockFile)

	for _, d := range []string{paths.ConfigDir, paths.DataDir, paths.LogDir, paths.RuntimeDir} {
		info, err := os.Stat(d)
		require.NoError(t, err, d)
		assert.True(t, info.IsDir())
	}
}

func TestLoadWritesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, "", cfg.VolumeLabel)
	assert.Equal(t, def.Log, cfg.Log)
	assert.Equal(t, def.Sync, cfg.Sync)
	assert.Equal(t, def.Volume, cfg.Volume)
	assert.FileExists(t, filepath.Join(dir, "config", "config.yaml"))
	assert.Equal(t, filepath.Join(dir, "config", "config.yaml"), cfg.SystemPaths.ConfigFile)
}

func TestLoadExistingKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volume_label: \"  CLIP \"\nsync:\n  retry_attempts: 5\nclipboard:\n  backend: X11\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "CLIP", cfg.VolumeLabel)
	assert.Equal(t, 5, cfg.Sync.RetryAttempts)
	assert.Equal(t, 500, cfg.Sync.RetryBackoffMs)
	assert.True(t, cfg.Sync.RequireRemovable)
	assert.Equal(t, "x11", cfg.Clipboard.Backend)
	assert.Equal(t, path, cfg.SystemPaths.ConfigFile)
}

func TestLoadNormalizesInvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  retry_attempts: 0\n  retry_backoff_ms: -4\nlog:\n  level: \"\"\njournal:\n  keep: -1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Sync.RetryAttempts)
	assert.Equal(t, 500, cfg.Sync.RetryBackoffMs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Journal.Keep)
}

func TestLoadParseError(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: [unterminated"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CLIPDRIVE_VOLUME_LABEL", "ENVLABEL")
	t.Setenv("CLIPDRIVE_LOG_LEVEL", "DEBUG")
	t.Setenv("CLIPDRIVE_CLIPBOARD_BACKEND", "poll")
	t.Setenv("CLIPDRIVE_POLL_INTERVAL_MS", "250")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ENVLABEL", cfg.VolumeLabel)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "poll", cfg.Clipboard.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.SetVolumeLabel("  BACKUP  ")
	cfg.Volume.WatchDevices = false
	require.NoError(t, cfg.Save(""))

	again, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "BACKUP", again.VolumeLabel)
	assert.False(t, again.Volume.WatchDevices)
	assert.NoFileExists(t, cfg.SystemPaths.ConfigFile+".tmp")
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff())
	assert.Equal(t, 1500*time.Millisecond, cfg.EchoWindow())
	assert.Equal(t, 5*time.Second, cfg.PresencePoll())
	assert.Equal(t, 1500*time.Millisecond, cfg.Settle())
}

func TestLabelWatcherFollowsFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")

	w := NewLabelWatcher(path, "INITIAL")
	assert.Equal(t, "INITIAL", w.Label(), "missing file keeps the initial label")

	require.NoError(t, os.WriteFile(path, []byte("volume_label: FIRST\n"), 0o644))
	assert.Equal(t, "FIRST", w.Label())

	require.NoError(t, os.WriteFile(path, []byte("volume_label: SECOND\n"), 0o644))
	assert.Equal(t, "SECOND", w.Label())

	require.NoError(t, os.WriteFile(path, []byte("volume_label: [broken"), 0o644))
	assert.Equal(t, "SECOND", w.Label(), "unparsable file keeps the last label")

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))
	assert.Equal(t, "", w.Label(), "absent key means unset")

	t.Setenv("CLIPDRIVE_VOLUME_LABEL", " ENV ")
	assert.Equal(t, "ENV", w.Label())
}

func TestEditDoesNotPersistEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("CLIPDRIVE_LOG_LEVEL", "debug")

	require.NoError(t, Edit(path, func(c *Config) { c.SetVolumeLabel("NEW") }))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "volume_label: NEW")
	assert.Contains(t, string(data), "level: warn")
}
