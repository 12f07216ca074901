// File: internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "clipdrive"

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	ConfigDir  string `yaml:"-"` // Directory holding config.yaml
	ConfigFile string `yaml:"-"` // Path to active config file
	DataDir    string `yaml:"-"` // Directory for application data
	DBFile     string `yaml:"-"` // Path to journal database
	LogDir     string `yaml:"-"` // Directory for log files
	LogFile    string `yaml:"-"`
	RuntimeDir string `yaml:"-"` // Socket and lock live here
	SocketPath string `yaml:"-"`
	LockFile   string `yaml:"-"`
}

// Config holds all application configuration
type Config struct {
	// VolumeLabel names the removable volume to mirror onto. Empty means unset.
	VolumeLabel string `yaml:"volume_label"`

	Log       LogConfig       `yaml:"log"`
	Clipboard ClipboardConfig `yaml:"clipboard"`
	Sync      SyncConfig      `yaml:"sync"`
	Volume    VolumeConfig    `yaml:"volume"`
	Journal   JournalConfig   `yaml:"journal"`

	SystemPaths ConfigPaths `yaml:"-"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"` // tee to stderr when it is a terminal
}

// ClipboardConfig selects how clipboard changes are observed.
type ClipboardConfig struct {
	Backend        string `yaml:"backend"` // auto, x11, wayland, poll
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// SyncConfig tunes the persist/restore engine.
type SyncConfig struct {
	RetryAttempts       int  `yaml:"retry_attempts"`
	RetryBackoffMs      int  `yaml:"retry_backoff_ms"`
	RestoreEchoWindowMs int  `yaml:"restore_echo_window_ms"`
	RequireRemovable    bool `yaml:"require_removable"`
}

// VolumeConfig tunes volume presence detection.
type VolumeConfig struct {
	WatchDevices   bool `yaml:"watch_devices"`
	PresencePollMs int  `yaml:"presence_poll_ms"`
	SettleMs       int  `yaml:"settle_ms"`
}

// JournalConfig bounds the local outcome journal.
type JournalConfig struct {
	Keep int `yaml:"keep"`
}

// GetConfigPaths returns the configuration paths, creating directories as needed
func GetConfigPaths() (*ConfigPaths, error) {
	configDir := os.Getenv("CLIPDRIVE_CONFIG_DIR")
	if configDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(base, appName)
	}

	dataDir := os.Getenv("CLIPDRIVE_DATA_DIR")
	if dataDir == "" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			dataDir = filepath.Join(xdg, appName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			dataDir = filepath.Join(home, ".local", "share", appName)
		}
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = dataDir
	} else {
		runtimeDir = filepath.Join(runtimeDir, appName)
	}

	paths := &ConfigPaths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, "config.yaml"),
		DataDir:    dataDir,
		DBFile:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "logs"),
		LogFile:    filepath.Join(dataDir, "logs", appName+".log"),
		RuntimeDir: runtimeDir,
		SocketPath: filepath.Join(runtimeDir, appName+".sock"),
		LockFile:   filepath.Join(runtimeDir, appName+".lock"),
	}

	for _, dir := range []string{paths.ConfigDir, paths.DataDir, paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(paths.RuntimeDir, 0o700); err != nil {
		return nil, err
	}

	return paths, nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
		Clipboard: ClipboardConfig{
			Backend:        "auto",
			PollIntervalMs: 500,
		},
		Sync: SyncConfig{
			RetryAttempts:       3,
			RetryBackoffMs:      500,
			RestoreEchoWindowMs: 1500,
			RequireRemovable:    true,
		},
		Volume: VolumeConfig{
			WatchDevices:   true,
			PresencePollMs: 5000,
			SettleMs:       1500,
		},
		Journal: JournalConfig{
			Keep: 500,
		},
	}
}

// Load loads the configuration from the specified file or creates default if not exists
func Load(configPath string) (*Config, error) {
	paths, err := GetConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config paths: %w", err)
	}
	if configPath == "" {
		configPath = paths.ConfigFile
	} else {
		paths.ConfigFile = configPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Keys absent from the file keep their defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.SystemPaths = *paths
	overrideFromEnv(cfg)
	cfg.normalize()

	return cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = c.SystemPaths.ConfigFile
	}
	if configPath == "" {
		return errors.New("no config path")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, configPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Edit applies fn to the configuration stored at configPath and saves it.
// Environment overrides are not applied, so they never end up in the file.
func Edit(configPath string, fn func(*Config)) error {
	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	fn(cfg)
	cfg.normalize()
	return cfg.Save(configPath)
}

// SetVolumeLabel stores a trimmed label; an empty label unsets it.
func (c *Config) SetVolumeLabel(label string) {
	c.VolumeLabel = strings.TrimSpace(label)
}

// Durations derived from the millisecond settings.

func (c *Config) PollInterval() time.Duration { return ms(c.Clipboard.PollIntervalMs) }
func (c *Config) RetryBackoff() time.Duration { return ms(c.Sync.RetryBackoffMs) }
func (c *Config) EchoWindow() time.Duration   { return ms(c.Sync.RestoreEchoWindowMs) }
func (c *Config) PresencePoll() time.Duration { return ms(c.Volume.PresencePollMs) }
func (c *Config) Settle() time.Duration       { return ms(c.Volume.SettleMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c *Config) normalize() {
	def := DefaultConfig()
	c.VolumeLabel = strings.TrimSpace(c.VolumeLabel)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	c.Clipboard.Backend = strings.ToLower(strings.TrimSpace(c.Clipboard.Backend))
	if c.Clipboard.Backend == "" {
		c.Clipboard.Backend = def.Clipboard.Backend
	}
	if c.Clipboard.PollIntervalMs <= 0 {
		c.Clipboard.PollIntervalMs = def.Clipboard.PollIntervalMs
	}
	if c.Sync.RetryAttempts <= 0 {
		c.Sync.RetryAttempts = def.Sync.RetryAttempts
	}
	if c.Sync.RetryBackoffMs < 0 {
		c.Sync.RetryBackoffMs = def.Sync.RetryBackoffMs
	}
	if c.Sync.RestoreEchoWindowMs < 0 {
		c.Sync.RestoreEchoWindowMs = 0
	}
	if c.Volume.PresencePollMs <= 0 {
		c.Volume.PresencePollMs = def.Volume.PresencePollMs
	}
	if c.Volume.SettleMs < 0 {
		c.Volume.SettleMs = def.Volume.SettleMs
	}
	if c.Journal.Keep <= 0 {
		c.Journal.Keep = def.Journal.Keep
	}
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val, ok := os.LookupEnv("CLIPDRIVE_VOLUME_LABEL"); ok {
		config.VolumeLabel = val
	}
	if val := os.Getenv("CLIPDRIVE_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("CLIPDRIVE_CLIPBOARD_BACKEND"); val != "" {
		config.Clipboard.Backend = val
	}
	if val := os.Getenv("CLIPDRIVE_POLL_INTERVAL_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Clipboard.PollIntervalMs = n
		}
	}
}
