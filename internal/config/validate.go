package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/quotefeed/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if _, err := c.SymbolSet(); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}

	if c.Source.BaseURL == "" {
		return errors.New("source.base_url is required")
	}
	if c.Source.MaxRetries < 0 {
		return errors.New("source.max_retries must be >= 0")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.InitialDelay < 0 {
		return errors.New("poller.initial_delay must be >= 0")
	}
	if c.Poller.FetchTimeout <= 0 {
		return errors.New("poller.fetch_timeout must be > 0")
	}

	switch c.Store.Backend {
	case BackendPostgres:
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendPostgres, BackendMemory, c.Store.Backend)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.HistoryLimit < 1 || c.Server.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("server.history_limit must be between 1 and %d, got %d", MaxHistoryLimit, c.Server.HistoryLimit)
	}
	if c.Server.SendBuffer < 1 {
		return errors.New("server.send_buffer must be >= 1")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// SymbolSet builds the immutable Symbol Set from the configured list.
func (c *Config) SymbolSet() (model.SymbolSet, error) {
	return model.NewSymbolSet(c.Symbols...)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
