package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport modes for the MCP server.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config defines feedsync configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	Remote RemoteConfig `yaml:"remote"`
	Device DeviceConfig `yaml:"device"`
	Sync   SyncConfig   `yaml:"sync"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"`
	AuthToken string `yaml:"auth_token"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type RemoteConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	FirstPageSize int           `yaml:"first_page_size"`
	OlderWindow   time.Duration `yaml:"older_window"`
}

type DeviceConfig struct {
	CallLogDB    string        `yaml:"calllog_db"`
	MessageLogDB string        `yaml:"messagelog_db"`
	Watch        bool          `yaml:"watch"`
	Debounce     time.Duration `yaml:"debounce"`
}

type SyncConfig struct {
	PageSize        int           `yaml:"page_size"`
	BatchSize       int           `yaml:"batch_size"`
	MaxPages        int           `yaml:"max_pages"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	NotReadyRetry   time.Duration `yaml:"not_ready_retry"`
	MaxTimelineRows int           `yaml:"max_timeline_rows"`
	DescriptionCap  int           `yaml:"description_cap"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8080,
			Transport: TransportStdio,
		},
		DB: DBConfig{
			Path: "feedsync.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Remote: RemoteConfig{
			Timeout:       30 * time.Second,
			FirstPageSize: 150,
			OlderWindow:   7 * 24 * time.Hour,
		},
		Device: DeviceConfig{
			Debounce: 500 * time.Millisecond,
		},
		Sync: SyncConfig{
			PageSize:        2,
			BatchSize:       10,
			MaxPages:        10,
			RefreshInterval: 15 * time.Minute,
			NotReadyRetry:   time.Minute,
			MaxTimelineRows: 10_000,
			DescriptionCap:  255,
		},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables. path wins over FEEDSYNC_CONFIG_PATH.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FEEDSYNC_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	setDuration := func(key string, dst *time.Duration) error {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	setString("FEEDSYNC_SERVER_HOST", &cfg.Server.Host)
	setString("FEEDSYNC_SERVER_TRANSPORT", &cfg.Server.Transport)
	setString("FEEDSYNC_AUTH_TOKEN", &cfg.Server.AuthToken)
	setString("FEEDSYNC_DB_PATH", &cfg.DB.Path)
	setString("FEEDSYNC_LOG_LEVEL", &cfg.Log.Level)
	setString("FEEDSYNC_LOG_PATH", &cfg.Log.Path)
	setString("FEEDSYNC_REMOTE_URL", &cfg.Remote.BaseURL)
	setString("FEEDSYNC_REMOTE_TOKEN", &cfg.Remote.Token)
	setString("FEEDSYNC_CALLLOG_DB", &cfg.Device.CallLogDB)
	setString("FEEDSYNC_MESSAGELOG_DB", &cfg.Device.MessageLogDB)

	if v := os.Getenv("FEEDSYNC_DEVICE_WATCH"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FEEDSYNC_DEVICE_WATCH: %w", err)
		}
		cfg.Device.Watch = on
	}

	for _, err := range []error{
		setInt("FEEDSYNC_SERVER_PORT", &cfg.Server.Port),
		setDuration("FEEDSYNC_REMOTE_TIMEOUT", &cfg.Remote.Timeout),
		setDuration("FEEDSYNC_REFRESH_INTERVAL", &cfg.Sync.RefreshInterval),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"sync.page_size", c.Sync.PageSize},
		{"sync.batch_size", c.Sync.BatchSize},
		{"sync.max_pages", c.Sync.MaxPages},
		{"sync.description_cap", c.Sync.DescriptionCap},
		{"remote.first_page_size", c.Remote.FirstPageSize},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", f.name, f.value))
		}
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, errors.New("remote.timeout must be positive"))
	}
	if c.Sync.RefreshInterval < 0 {
		errs = append(errs, errors.New("sync.refresh_interval must not be negative"))
	}
	return errors.Join(errs...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
