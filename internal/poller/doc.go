// Package poller implements the Poll Worker and its Startup Guard.
//
// The Poll Worker:
//   - Waits a one-time initial delay, then runs a cycle every interval
//   - Walks the symbol set in order: fetch, persist, then hand to sinks
//   - Treats NoData and per-symbol failures as non-fatal
//   - Is launched at most once per process through its Guard
package poller
