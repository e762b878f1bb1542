// Package model defines shared data types used across the quote feed.
//
// Conventions:
//   - Prices: float64 quote currency units, always > 0 once persisted
//   - Timestamps: time.Time in UTC, truncated to whole seconds by the store
//   - IDs: int64 store sequence for observations, string for subscribers
package model
