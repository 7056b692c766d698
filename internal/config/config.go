package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Tracking      TrackingConfig      `mapstructure:"tracking"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Limits        LimitsConfig        `mapstructure:"limits"`
	Probes        ProbesConfig        `mapstructure:"probes"`
	API           APIConfig           `mapstructure:"api"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type string `mapstructure:"type"` // "file" or "bolt"
	Path string `mapstructure:"path"` // bolt database path; file backend uses data_dir
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines foreground sampling settings
type TrackingConfig struct {
	SampleInterval         string `mapstructure:"sample_interval"`
	RunningRefreshInterval string `mapstructure:"running_refresh_interval"`
	ElapsedCap             string `mapstructure:"elapsed_cap"`
	FlushDebounce          string `mapstructure:"flush_debounce"`
	UsageRetentionDays     int    `mapstructure:"usage_retention_days"` // 0 keeps full history
}

// NotificationsConfig defines notification accounting settings
type NotificationsConfig struct {
	FlushDebounce string `mapstructure:"flush_debounce"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LimitsConfig defines time-limit evaluation settings
type LimitsConfig struct {
	CheckInterval string `mapstructure:"check_interval"`
	StartupDelay  string `mapstructure:"startup_delay"`
}

// ProbesConfig defines how observations are gathered. A probe with a command
// configured runs that script; otherwise the native probe is used.
type ProbesConfig struct {
	Foreground   ProbeConfig `mapstructure:"foreground"`
	Census       ProbeConfig `mapstructure:"census"`
	Notification ProbeConfig `mapstructure:"notification"`
}

// ProbeConfig defines a single probe
type ProbeConfig struct {
	Command []string `mapstructure:"command"`
	Timeout string   `mapstructure:"timeout"`
}

// APIConfig defines the local HTTP API settings
type APIConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
}

// MetricsConfig defines the Prometheus metrics endpoint settings
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("appwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".appwatch"))
		}
	}
	v.SetEnvPrefix("APPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())

	// Storage defaults
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.sample_interval", "1s")
	v.SetDefault("tracking.running_refresh_interval", "5s")
	v.SetDefault("tracking.elapsed_cap", "60s")
	v.SetDefault("tracking.flush_debounce", "5s")
	v.SetDefault("tracking.usage_retention_days", 0)

	// Notification defaults
	v.SetDefault("notifications.flush_debounce", "5s")
	v.SetDefault("notifications.retention_days", 7)

	// Limit evaluation defaults
	v.SetDefault("limits.check_interval", "30s")
	v.SetDefault("limits.startup_delay", "5s")

	// Probe defaults
	v.SetDefault("probes.foreground.command", []string{})
	v.SetDefault("probes.foreground.timeout", "3s")
	v.SetDefault("probes.census.command", []string{})
	v.SetDefault("probes.census.timeout", "4s")
	v.SetDefault("probes.notification.command", []string{})
	v.SetDefault("probes.notification.timeout", "30s")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8321)
	v.SetDefault("api.bind_address", "127.0.0.1")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
}

// defaultDataDir resolves the per-user data directory.
func defaultDataDir() string {
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		return filepath.Join(dir, "AppWatch")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".appwatch", "data")
	}
	return "appwatch-data"
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch cfg.Storage.Type {
	case "", "file":
		cfg.Storage.Type = "file"
	case "bolt":
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = filepath.Join(cfg.DataDir, "appwatch.bolt")
		}
	default:
		return fmt.Errorf("invalid storage type: %q", cfg.Storage.Type)
	}

	if cfg.API.Enabled && (cfg.API.Port <= 0 || cfg.API.Port > 65535) {
		return fmt.Errorf("invalid API port: %d", cfg.API.Port)
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}
	if cfg.Tracking.UsageRetentionDays < 0 {
		return fmt.Errorf("usage_retention_days cannot be negative")
	}
	if cfg.Notifications.RetentionDays < 0 {
		return fmt.Errorf("notifications retention_days cannot be negative")
	}

	return nil
}
