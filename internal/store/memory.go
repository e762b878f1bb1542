package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rickgao/quotefeed/internal/model"
)

// Memory is an in-process Store. Contents are lost on restart.
type Memory struct {
	mu      sync.RWMutex
	bySym   map[string][]model.Observation
	symbols model.SymbolSet
	seq     int64
	clock   *clock
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.clock = newClock(now)
	}
}

// WithSymbols restricts appends to the given set.
func WithSymbols(set model.SymbolSet) MemoryOption {
	return func(m *Memory) {
		m.symbols = set
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		bySym: make(map[string][]model.Observation),
		clock: newClock(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Append implements Store.
func (m *Memory) Append(ctx context.Context, symbol string, price float64) (model.Observation, error) {
	if err := validate(symbol, price); err != nil {
		return model.Observation{}, err
	}
	if m.symbols.Len() > 0 && !m.symbols.Contains(symbol) {
		return model.Observation{}, fmt.Errorf("append %s: %w", symbol, ErrUnknownSymbol)
	}
	if err := ctx.Err(); err != nil {
		return model.Observation{}, fmt.Errorf("append %s: %w", symbol, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	obs := model.Observation{
		ID:         m.seq,
		Symbol:     symbol,
		Price:      price,
		ObservedAt: m.clock.next(),
	}
	m.bySym[symbol] = append(m.bySym[symbol], obs)

	return obs, nil
}

// LastN implements Store.
func (m *Memory) LastN(ctx context.Context, symbol string, n int) ([]model.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("last %d %s: %w", n, symbol, err)
	}
	if n <= 0 {
		return []model.Observation{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.bySym[symbol]
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	out := make([]model.Observation, len(rows))
	copy(out, rows)
	return out, nil
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the total number of observations.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, rows := range m.bySym {
		total += len(rows)
	}
	return total
}
