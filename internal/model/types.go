package model

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// TimeLayout is the wire format for observation and event timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// Observation is one persisted price sample.
type Observation struct {
	ID         int64     // Store-assigned sequence, strictly increasing per store
	Symbol     string    // Member of the configured Symbol Set
	Price      float64   // Always > 0
	ObservedAt time.Time // Assigned at append time, second resolution, UTC
}

// Event converts the observation into its broadcast form.
func (o Observation) Event() Event {
	return Event{
		Symbol: o.Symbol,
		Price:  o.Price,
		Time:   o.ObservedAt,
	}
}

// Event is a realtime price update pushed to subscribers.
type Event struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// -----------------------------------------------------------------------------
// Symbol Set
// -----------------------------------------------------------------------------

// ErrEmptySymbolSet is returned when no symbols are configured.
var ErrEmptySymbolSet = errors.New("symbol set is empty")

// SymbolSet is the fixed, ordered list of tracked symbols.
// The zero value is an empty set.
type SymbolSet struct {
	symbols []string
}

// NewSymbolSet builds a set preserving first-seen order. Duplicates are dropped.
func NewSymbolSet(symbols ...string) (SymbolSet, error) {
	if len(symbols) == 0 {
		return SymbolSet{}, ErrEmptySymbolSet
	}

	out := make([]string, 0, len(symbols))
	for i, s := range symbols {
		if s == "" {
			return SymbolSet{}, fmt.Errorf("symbol %d is empty", i)
		}
		if slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}

	return SymbolSet{symbols: out}, nil
}

// Symbols returns a copy of the symbols in iteration order.
func (s SymbolSet) Symbols() []string {
	return slices.Clone(s.symbols)
}

// Len returns the number of symbols.
func (s SymbolSet) Len() int {
	return len(s.symbols)
}

// Contains reports whether symbol is tracked.
func (s SymbolSet) Contains(symbol string) bool {
	return slices.Contains(s.symbols, symbol)
}
