// Package api provides the HTTP client for the Yahoo Finance chart endpoint.
//
// Endpoint:
//   - GET {base}/v8/finance/chart/{symbol}?range=1d&interval=1m
//
// The response carries a meta block (including regularMarketPrice) and an
// OHLC series. Both price tiers in package source are built on it.
package api
