package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Stats     StatsConfig     `yaml:"stats"`
	Notify    NotifyConfig    `yaml:"notify"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type SessionConfig struct {
	DefaultRestSeconds int `yaml:"default_rest_seconds"`
	PRBannerSeconds    int `yaml:"pr_banner_seconds"`
	// TickInterval is a Go duration string such as "1s".
	TickInterval string `yaml:"tick_interval"`
}

type StatsConfig struct {
	// RefreshSchedule is a five-field cron expression.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// DefaultRest returns the configured default rest duration.
func (s SessionConfig) DefaultRest() time.Duration {
	return time.Duration(s.DefaultRestSeconds) * time.Second
}

// PRBanner returns how long a new personal record stays visible.
func (s SessionConfig) PRBanner() time.Duration {
	return time.Duration(s.PRBannerSeconds) * time.Second
}

// Tick returns the heartbeat interval. validate has already checked it parses.
func (s SessionConfig) Tick() time.Duration {
	d, _ := time.ParseDuration(s.TickInterval)
	return d
}

// SlogLevel maps the configured level name onto slog.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "freelift.db", Port: 5432},
		Session: SessionConfig{
			DefaultRestSeconds: 90,
			PRBannerSeconds:    3,
			TickInterval:       "1s",
		},
		Stats:     StatsConfig{RefreshSchedule: "*/15 * * * *"},
		Tailscale: TailscaleConfig{Hostname: "freelift"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides. Env vars use the prefix FREELIFT_ and
// underscore-separated paths:
//
//	FREELIFT_SERVER_HOST, FREELIFT_SERVER_PORT,
//	FREELIFT_DB_DRIVER, FREELIFT_DB_PATH,
//	FREELIFT_DB_HOST, FREELIFT_DB_PORT, FREELIFT_DB_NAME,
//	FREELIFT_DB_USER, FREELIFT_DB_PASSWORD, FREELIFT_DB_SSLMODE,
//	FREELIFT_AUTH_API_KEY, FREELIFT_SESSION_DEFAULT_REST_SECONDS,
//	FREELIFT_STATS_REFRESH_SCHEDULE, FREELIFT_NOTIFY_WEBHOOK_URL,
//	FREELIFT_TAILSCALE_ENABLED, FREELIFT_LOG_LEVEL
//
// A missing file is not an error; defaults and env vars still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *Config) {
	envString("FREELIFT_SERVER_HOST", &cfg.Server.Host)
	envInt("FREELIFT_SERVER_PORT", &cfg.Server.Port)
	envString("FREELIFT_DB_DRIVER", &cfg.Database.Driver)
	envString("FREELIFT_DB_PATH", &cfg.Database.Path)
	envString("FREELIFT_DB_HOST", &cfg.Database.Host)
	envInt("FREELIFT_DB_PORT", &cfg.Database.Port)
	envString("FREELIFT_DB_NAME", &cfg.Database.Name)
	envString("FREELIFT_DB_USER", &cfg.Database.User)
	envString("FREELIFT_DB_PASSWORD", &cfg.Database.Password)
	envString("FREELIFT_DB_SSLMODE", &cfg.Database.SSLMode)
	envString("FREELIFT_AUTH_API_KEY", &cfg.Auth.APIKey)
	envInt("FREELIFT_SESSION_DEFAULT_REST_SECONDS", &cfg.Session.DefaultRestSeconds)
	envString("FREELIFT_STATS_REFRESH_SCHEDULE", &cfg.Stats.RefreshSchedule)
	envString("FREELIFT_NOTIFY_WEBHOOK_URL", &cfg.Notify.WebhookURL)
	envString("FREELIFT_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("FREELIFT_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver %q is not one of postgres, sqlite, memory", c.Database.Driver)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Session.DefaultRestSeconds <= 0 {
		return fmt.Errorf("session.default_rest_seconds must be positive")
	}
	if c.Session.PRBannerSeconds < 0 {
		return fmt.Errorf("session.pr_banner_seconds must not be negative")
	}
	if d, err := time.ParseDuration(c.Session.TickInterval); err != nil || d <= 0 {
		return fmt.Errorf("session.tick_interval %q is not a positive duration", c.Session.TickInterval)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
