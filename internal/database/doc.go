// Package database provides connection pool management for PostgreSQL.
//
// The quote feed keeps a single pool for the price_observations table.
package database
