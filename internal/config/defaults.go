package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID    = "quotefeed"
	DefaultSourceURL     = "https://query1.finance.yahoo.com"
	DefaultSourceTimeout = 10 * time.Second
	DefaultMaxRetries    = 0
	DefaultRetryBackoff  = 500 * time.Millisecond
	DefaultBarInterval   = "1m"
	DefaultUserAgent     = "Mozilla/5.0 (compatible; quotefeed/1.0)"
	DefaultPollInterval  = 60 * time.Second
	DefaultInitialDelay  = 5 * time.Second
	DefaultFetchTimeout  = 15 * time.Second
	DefaultStoreBackend  = BackendPostgres
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 5
	DefaultMinConns      = 1
	DefaultRedisTTL      = 10 * time.Minute
	DefaultServerPort    = 8080
	DefaultHistoryLimit  = 50
	MaxHistoryLimit      = 1000
	DefaultSendBuffer    = 64
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// DefaultSymbols is used when the config file lists none.
var DefaultSymbols = []string{"BTC-USD", "DOGE-USD", "SOL-USD"}

// seed returns a Config holding the defaults for fields where zero is a
// legal value. applyDefaults cannot tell those zeros from "unset".
func seed() Config {
	var c Config
	c.Source.MaxRetries = DefaultMaxRetries
	c.Poller.InitialDelay = DefaultInitialDelay
	return c
}

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}
	if len(c.Symbols) == 0 {
		c.Symbols = append([]string(nil), DefaultSymbols...)
	}

	// Source defaults
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultSourceURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = DefaultSourceTimeout
	}
	if c.Source.RetryBackoff == 0 {
		c.Source.RetryBackoff = DefaultRetryBackoff
	}
	if c.Source.BarInterval == "" {
		c.Source.BarInterval = DefaultBarInterval
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = DefaultUserAgent
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.FetchTimeout == 0 {
		c.Poller.FetchTimeout = DefaultFetchTimeout
	}

	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	applyDBDefaults(&c.Database)

	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.HistoryLimit == 0 {
		c.Server.HistoryLimit = DefaultHistoryLimit
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
