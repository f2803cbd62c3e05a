package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Remote     RemoteConfig     `yaml:"remote"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Sync       SyncConfig       `yaml:"sync"`
	Stream     StreamConfig     `yaml:"stream"`
	Locks      LocksConfig      `yaml:"locks"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// RemoteConfig holds the vendor API client configuration.
type RemoteConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	AccessToken     string        `yaml:"access_token"`
	ClientID        string        `yaml:"client_id"`
	WebhookURL      string        `yaml:"webhook_url"`
	PinWebhookURL   string        `yaml:"pin_webhook_url"`
	HTTPProxy       string        `yaml:"http_proxy"`
	TimeoutSeconds  int           `yaml:"timeout_seconds"`
	Timeout         time.Duration `yaml:"-"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	Burst           int           `yaml:"burst"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// SyncConfig controls the periodic status resync of all managed locks.
type SyncConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// StreamConfig controls the optional websocket push event stream.
type StreamConfig struct {
	Enabled          bool              `yaml:"enabled"`
	URL              string            `yaml:"url"`
	Headers          map[string]string `yaml:"headers"`
	ReconnectSeconds int               `yaml:"reconnect_seconds"`
	Reconnect        time.Duration     `yaml:"-"`
}

// ManagedLock is a lock onboarded at startup.
type ManagedLock struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LocksConfig holds the lock engine settings and the locks to manage.
type LocksConfig struct {
	BatteryCooldownSeconds int           `yaml:"battery_cooldown_seconds"`
	BatteryCooldown        time.Duration `yaml:"-"`
	CommandSource          string        `yaml:"command_source"`
	Managed                []ManagedLock `yaml:"managed"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Remote.TimeoutSeconds <= 0 {
		cfg.Remote.TimeoutSeconds = 30
	}
	cfg.Remote.Timeout = time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	if cfg.Remote.Burst <= 0 {
		cfg.Remote.Burst = 1
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 300
	}
	cfg.Sync.Interval = time.Duration(cfg.Sync.IntervalSeconds) * time.Second

	if cfg.Stream.ReconnectSeconds <= 0 {
		cfg.Stream.ReconnectSeconds = 5
	}
	cfg.Stream.Reconnect = time.Duration(cfg.Stream.ReconnectSeconds) * time.Second

	if cfg.Locks.BatteryCooldownSeconds <= 0 {
		cfg.Locks.BatteryCooldownSeconds = 60
	}
	cfg.Locks.BatteryCooldown = time.Duration(cfg.Locks.BatteryCooldownSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
