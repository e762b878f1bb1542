// Package history answers point-in-time queries merged across symbols.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rickgao/quotefeed/internal/model"
	"github.com/rickgao/quotefeed/internal/store"
)

// Service reads recent observations for every tracked symbol.
type Service struct {
	store   store.Store
	symbols model.SymbolSet
	logger  *slog.Logger
}

// New creates a Service over st for the given symbols.
func New(st store.Store, symbols model.SymbolSet, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		symbols: symbols,
		logger:  logger,
	}
}

// GetRecent returns up to n observations per symbol, merged into one slice
// in non-decreasing ObservedAt order. Observations with equal timestamps keep
// symbol-set order, and within a symbol, insertion order.
//
// Any store error aborts the query; no partial result is returned.
func (s *Service) GetRecent(ctx context.Context, n int) ([]model.Observation, error) {
	if n <= 0 {
		return []model.Observation{}, nil
	}

	symbols := s.symbols.Symbols()
	perSymbol := make([][]model.Observation, 0, len(symbols))
	total := 0

	for _, symbol := range symbols {
		obs, err := s.store.LastN(ctx, symbol, n)
		if err != nil {
			return nil, fmt.Errorf("get recent %s: %w", symbol, err)
		}
		perSymbol = append(perSymbol, obs)
		total += len(obs)
	}

	// Sized by rows returned, not by n.
	merged := make([]model.Observation, 0, total)
	for _, obs := range perSymbol {
		merged = append(merged, obs...)
	}

	slices.SortStableFunc(merged, func(a, b model.Observation) int {
		return a.ObservedAt.Compare(b.ObservedAt)
	})

	s.logger.Debug("history query",
		"per_symbol", n,
		"symbols", len(symbols),
		"returned", len(merged),
	)

	return merged, nil
}
