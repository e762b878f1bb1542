// Package store persists price observations as an append-only time series.
package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rickgao/quotefeed/internal/model"
)

// Errors
var (
	ErrInvalidObservation = errors.New("invalid observation")
	ErrUnknownSymbol      = errors.New("unknown symbol")
)

// Store is the append-only observation store.
type Store interface {
	// Append persists one observation and returns it with its assigned
	// sequence ID and timestamp.
	Append(ctx context.Context, symbol string, price float64) (model.Observation, error)

	// LastN returns up to n most recent observations for symbol, oldest first.
	LastN(ctx context.Context, symbol string, n int) ([]model.Observation, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

func validate(symbol string, price float64) error {
	if symbol == "" {
		return errors.Join(ErrInvalidObservation, errors.New("empty symbol"))
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return errors.Join(ErrInvalidObservation, errors.New("price must be positive"))
	}
	return nil
}

// clock hands out second-resolution UTC timestamps that never go backwards,
// even if the wall clock is stepped.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UTC().Truncate(time.Second)
	if ts.Before(c.last) {
		ts = c.last
	}
	c.last = ts
	return ts
}

// reverse flips a newest-first slice in place.
func reverse(obs []model.Observation) {
	for i, j := 0, len(obs)-1; i < j; i, j = i+1, j-1 {
		obs[i], obs[j] = obs[j], obs[i]
	}
}
