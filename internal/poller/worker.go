package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/quotefeed/internal/model"
	"github.com/rickgao/quotefeed/internal/source"
	"github.com/rickgao/quotefeed/internal/store"
)

// Sink receives observations after they are persisted.
type Sink interface {
	HandleObservation(ctx context.Context, obs model.Observation) error
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(context.Context, model.Observation) error

func (f SinkFunc) HandleObservation(ctx context.Context, obs model.Observation) error {
	return f(ctx, obs)
}

// Config holds worker timing.
type Config struct {
	Interval     time.Duration // Pause between cycles (default: 60s)
	InitialDelay time.Duration // One-time pause before the first cycle (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     60 * time.Second,
		InitialDelay: 5 * time.Second,
	}
}

// CycleStats summarizes one pass over the symbol set.
type CycleStats struct {
	Fetched   int // Fetches that produced a price
	NoData    int // Fetches that produced nothing usable
	Persisted int // Successful appends
	Errors    int // Append failures and recovered panics
}

// Stats holds cumulative worker counters.
type Stats struct {
	Started   bool
	Cycles    int64
	Fetched   int64
	NoData    int64
	Persisted int64
	Errors    int64
}

// Worker drives the fetch, persist, broadcast cycle.
type Worker struct {
	cfg     Config
	symbols model.SymbolSet
	fetcher source.Fetcher
	store   store.Store
	sinks   []Sink
	logger  *slog.Logger

	guard Guard

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles    atomic.Int64
	fetched   atomic.Int64
	noData    atomic.Int64
	persisted atomic.Int64
	errors    atomic.Int64
}

// New creates a Worker. Sinks are called in order after each successful append.
func New(cfg Config, symbols model.SymbolSet, fetcher source.Fetcher, st store.Store, logger *slog.Logger, sinks ...Sink) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:     cfg,
		symbols: symbols,
		fetcher: fetcher,
		store:   st,
		sinks:   sinks,
		logger:  logger,
	}
}

// Start launches the polling loop on the first call and reports whether
// this call launched it. Later calls are no-ops. The loop runs until ctx
// is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) bool {
	return w.guard.Launch(func() {
		runCtx, cancel := context.WithCancel(ctx)

		w.mu.Lock()
		w.cancel = cancel
		w.mu.Unlock()

		w.wg.Add(1)
		go w.run(runCtx)

		w.logger.Info("poll worker started",
			"symbols", w.symbols.Symbols(),
			"interval", w.cfg.Interval,
			"initial_delay", w.cfg.InitialDelay,
		)
	})
}

// Started reports whether the loop has been launched.
func (w *Worker) Started() bool {
	return w.guard.Started()
}

// Stop cancels the loop and waits for the current cycle to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("poll worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns cumulative counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Started:   w.guard.Started(),
		Cycles:    w.cycles.Load(),
		Fetched:   w.fetched.Load(),
		NoData:    w.noData.Load(),
		Persisted: w.persisted.Load(),
		Errors:    w.errors.Load(),
	}
}

// run is the main loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	if !sleep(ctx, w.cfg.InitialDelay) {
		return
	}

	for {
		w.cycle(ctx)

		if !sleep(ctx, w.cfg.Interval) {
			return
		}
	}
}

// sleep waits for d or ctx cancellation. Returns false if cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// cycle polls every symbol once, in set order.
func (w *Worker) cycle(ctx context.Context) CycleStats {
	start := time.Now()
	var stats CycleStats

	for _, symbol := range w.symbols.Symbols() {
		if ctx.Err() != nil {
			break
		}
		w.pollSymbol(ctx, symbol, &stats)
	}

	w.cycles.Add(1)
	w.fetched.Add(int64(stats.Fetched))
	w.noData.Add(int64(stats.NoData))
	w.persisted.Add(int64(stats.Persisted))
	w.errors.Add(int64(stats.Errors))

	w.logger.Info("poll cycle complete",
		"symbols", w.symbols.Len(),
		"fetched", stats.Fetched,
		"no_data", stats.NoData,
		"persisted", stats.Persisted,
		"errors", stats.Errors,
		"duration", time.Since(start),
	)

	return stats
}

// pollSymbol fetches, persists and forwards a single symbol's price.
// Nothing escapes it, including panics.
func (w *Worker) pollSymbol(ctx context.Context, symbol string, stats *CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Errors++
			w.logger.Error("poll symbol panicked",
				"symbol", symbol,
				"panic", r,
			)
		}
	}()

	res := w.fetcher.Fetch(ctx, symbol)
	if !res.OK() {
		stats.NoData++
		w.logger.Info("no price available",
			"symbol", symbol,
			"reason", res.Reason(),
		)
		return
	}
	stats.Fetched++

	obs, err := w.store.Append(ctx, symbol, res.Value())
	if err != nil {
		stats.Errors++
		w.logger.Warn("failed to persist observation",
			"symbol", symbol,
			"price", res.Value(),
			"error", err,
		)
		return
	}
	stats.Persisted++

	w.logger.Debug("observation persisted",
		"symbol", symbol,
		"price", obs.Price,
		"id", obs.ID,
		"tier", res.Tier(),
	)

	for _, sink := range w.sinks {
		if err := sink.HandleObservation(ctx, obs); err != nil {
			w.logger.Warn("sink failed",
				"symbol", symbol,
				"error", err,
			)
		}
	}
}
