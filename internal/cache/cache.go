// Package cache keeps the most recent observation per symbol in Redis.
//
// It is an optional poller sink: the worker writes to it after the store
// append and the hub broadcast, and the HTTP server reads it for
// /api/latest. A nil *Cache is valid and reports ErrDisabled.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/quotefeed/internal/config"
	"github.com/rickgao/quotefeed/internal/model"
)

// ErrDisabled is returned when no Redis address is configured.
var ErrDisabled = errors.New("latest-price cache disabled")

const (
	keyPrefix   = "latest:"
	pingTimeout = 5 * time.Second
)

// Entry is the cached form of an observation.
type Entry struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// Cache writes and reads latest-price entries.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to Redis and verifies the connection.
// Returns (nil, ErrDisabled) when cfg has no address.
func New(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return NewWithClient(client, cfg.TTL, logger), nil
}

// NewWithClient wraps an existing client. A ttl of zero keeps keys forever.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// HandleObservation stores obs as the latest entry for its symbol.
func (c *Cache) HandleObservation(ctx context.Context, obs model.Observation) error {
	if c == nil {
		return ErrDisabled
	}

	data, err := json.Marshal(Entry{
		ID:         obs.ID,
		Symbol:     obs.Symbol,
		Price:      obs.Price,
		ObservedAt: obs.ObservedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := c.client.Set(ctx, key(obs.Symbol), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set latest %s: %w", obs.Symbol, err)
	}
	return nil
}

// Latest returns cached entries for symbols, in the given order.
// Symbols without an entry (never seen or expired) are omitted.
func (c *Cache) Latest(ctx context.Context, symbols []string) ([]Entry, error) {
	if c == nil {
		return nil, ErrDisabled
	}
	if len(symbols) == 0 {
		return []Entry{}, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = key(sym)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget latest: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	for i, v := range values {
		payload, ok := v.(string)
		if !ok || payload == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			c.logger.Warn("skipping corrupt cache entry", "key", keys[i], "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return ErrDisabled
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func key(symbol string) string {
	return keyPrefix + symbol
}
