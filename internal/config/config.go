package config

import "time"

// Config is the root configuration for a quotefeed instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Symbols  []string       `yaml:"symbols"`
	Source   SourceConfig   `yaml:"source"`
	Poller   PollerConfig   `yaml:"poller"`
	Store    StoreConfig    `yaml:"store"`
	Database DBConfig       `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this process in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourceConfig holds quote provider settings.
type SourceConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	BarInterval  string        `yaml:"bar_interval"` // Fallback window bar size, e.g. "1m"
	UserAgent    string        `yaml:"user_agent"`
}

// PollerConfig holds poll worker settings.
type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // Deadline for each source tier, not the whole fetch
}

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// StoreConfig selects the observation store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the latest-price cache connection. Empty Addr disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ServerConfig holds HTTP and WebSocket settings.
type ServerConfig struct {
	Port         int `yaml:"port"`
	HistoryLimit int `yaml:"history_limit"` // Records per symbol on /api/data
	SendBuffer   int `yaml:"send_buffer"`   // Per-subscriber outbound queue
}

// LogConfig holds slog handler settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
