package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/quotefeed/internal/api"
	"github.com/rickgao/quotefeed/internal/model"
	"github.com/rickgao/quotefeed/internal/source"
	"github.com/rickgao/quotefeed/internal/store"
)

// scriptedFetcher returns a fixed sequence of results per symbol.
// The last result repeats once the script runs out.
type scriptedFetcher struct {
	mu      sync.Mutex
	script  map[string][]source.Result
	calls   map[string]int
	panicOn string
	total   atomic.Int32
}

func newScriptedFetcher(script map[string][]source.Result) *scriptedFetcher {
	return &scriptedFetcher{
		script: script,
		calls:  make(map[string]int),
	}
}

func (f *scriptedFetcher) Fetch(_ context.Context, symbol string) source.Result {
	f.total.Add(1)
	if symbol == f.panicOn {
		panic("provider exploded")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls[symbol]
	f.calls[symbol]++

	rs := f.script[symbol]
	if len(rs) == 0 {
		return source.NoData("unscripted")
	}
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i]
}

// recordingSink keeps every observation it is handed.
type recordingSink struct {
	mu  sync.Mutex
	got []model.Observation
}

func (s *recordingSink) HandleObservation(_ context.Context, obs model.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, obs)
	return nil
}

func (s *recordingSink) symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.got))
	for i, o := range s.got {
		out[i] = o.Symbol
	}
	return out
}

// failingStore rejects every append.
type failingStore struct{}

func (failingStore) Append(context.Context, string, float64) (model.Observation, error) {
	return model.Observation{}, errors.New("disk full")
}

func (failingStore) LastN(context.Context, string, int) ([]model.Observation, error) {
	return nil, errors.New("disk full")
}

func (failingStore) Ping(context.Context) error { return errors.New("disk full") }

// steppingClock advances one second per call.
func steppingClock() func() time.Time {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func mustSymbols(t *testing.T, symbols ...string) model.SymbolSet {
	t.Helper()
	set, err := model.NewSymbolSet(symbols...)
	if err != nil {
		t.Fatalf("NewSymbolSet(%v) error = %v", symbols, err)
	}
	return set
}

func prices(obs []model.Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Price
	}
	return out
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWorker_ThreeCycleScenario(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.Price(100), source.NoData("rate limited"), source.Price(102)},
		"B": {source.Price(50), source.Price(51), source.Price(52)},
	})
	st := store.NewMemory(store.WithClock(steppingClock()))
	sink := &recordingSink{}

	w := New(DefaultConfig(), mustSymbols(t, "A", "B"), fetcher, st, nil, sink)

	ctx := context.Background()
	var got []CycleStats
	for i := 0; i < 3; i++ {
		got = append(got, w.cycle(ctx))
	}

	want := []CycleStats{
		{Fetched: 2, Persisted: 2},
		{Fetched: 1, NoData: 1, Persisted: 1},
		{Fetched: 2, Persisted: 2},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cycle %d stats = %+v, want %+v", i+1, got[i], want[i])
		}
	}

	a, err := st.LastN(ctx, "A", 10)
	if err != nil {
		t.Fatalf("LastN(A) error = %v", err)
	}
	if p := prices(a); !equalFloats(p, []float64{100, 102}) {
		t.Errorf("LastN(A) prices = %v, want [100 102]", p)
	}

	b, err := st.LastN(ctx, "B", 10)
	if err != nil {
		t.Fatalf("LastN(B) error = %v", err)
	}
	if p := prices(b); !equalFloats(p, []float64{50, 51, 52}) {
		t.Errorf("LastN(B) prices = %v, want [50 51 52]", p)
	}

	if n := len(sink.symbols()); n != 5 {
		t.Errorf("sink received %d observations, want 5", n)
	}

	stats := w.Stats()
	if stats.Cycles != 3 || stats.Persisted != 5 || stats.NoData != 1 {
		t.Errorf("Stats() = %+v, want 3 cycles, 5 persisted, 1 no-data", stats)
	}
	if stats.Started {
		t.Error("Stats().Started = true without Start")
	}
}

func TestWorker_NoDataDoesNotBlockLaterSymbols(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.NoData("both tiers failed")},
		"B": {source.Price(2)},
		"C": {source.Price(3)},
	})
	st := store.NewMemory()
	sink := &recordingSink{}

	w := New(DefaultConfig(), mustSymbols(t, "A", "B", "C"), fetcher, st, nil, sink)
	stats := w.cycle(context.Background())

	if stats.NoData != 1 || stats.Persisted != 2 {
		t.Errorf("cycle stats = %+v, want 1 no-data, 2 persisted", stats)
	}

	got := sink.symbols()
	if len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("broadcast order = %v, want [B C]", got)
	}
}

func TestWorker_PanicIsolatedToSymbol(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"B": {source.Price(7)},
	})
	fetcher.panicOn = "A"
	st := store.NewMemory()

	w := New(DefaultConfig(), mustSymbols(t, "A", "B"), fetcher, st, nil)
	stats := w.cycle(context.Background())

	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Persisted != 1 {
		t.Errorf("Persisted = %d, want 1", stats.Persisted)
	}
	if st.Len() != 1 {
		t.Errorf("store Len() = %d, want 1", st.Len())
	}
}

func TestWorker_SinkPanicIsolated(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.Price(1)},
		"B": {source.Price(2)},
	})
	st := store.NewMemory()
	after := &recordingSink{}
	boom := SinkFunc(func(_ context.Context, obs model.Observation) error {
		if obs.Symbol == "A" {
			panic("subscriber table corrupted")
		}
		return nil
	})

	w := New(DefaultConfig(), mustSymbols(t, "A", "B"), fetcher, st, nil, boom, after)
	stats := w.cycle(context.Background())

	if stats.Persisted != 2 {
		t.Errorf("Persisted = %d, want 2", stats.Persisted)
	}
	if got := after.symbols(); len(got) != 1 || got[0] != "B" {
		t.Errorf("later sink saw %v, want [B]", got)
	}
}

func TestWorker_AppendFailureSkipsSinks(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.Price(1)},
	})
	sink := &recordingSink{}

	w := New(DefaultConfig(), mustSymbols(t, "A"), fetcher, failingStore{}, nil, sink)
	stats := w.cycle(context.Background())

	if stats.Fetched != 1 || stats.Errors != 1 || stats.Persisted != 0 {
		t.Errorf("cycle stats = %+v, want fetched 1, errors 1", stats)
	}
	if n := len(sink.symbols()); n != 0 {
		t.Errorf("sink received %d observations after failed append, want 0", n)
	}
}

func TestWorker_PersistBeforeBroadcast(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.Price(10)},
	})
	st := store.NewMemory()

	var checked atomic.Bool
	sink := SinkFunc(func(ctx context.Context, obs model.Observation) error {
		recent, err := st.LastN(ctx, obs.Symbol, 1)
		if err != nil {
			t.Errorf("LastN() in sink error = %v", err)
			return err
		}
		if len(recent) != 1 || recent[0].ID != obs.ID {
			t.Errorf("observation %d not visible in store at broadcast time: %+v", obs.ID, recent)
		}
		checked.Store(true)
		return nil
	})

	w := New(DefaultConfig(), mustSymbols(t, "A"), fetcher, st, nil, sink)
	w.cycle(context.Background())

	if !checked.Load() {
		t.Error("sink was never called")
	}
}

func TestWorker_CycleStopsOnCancel(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.Price(1)},
		"B": {source.Price(2)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(DefaultConfig(), mustSymbols(t, "A", "B"), fetcher, store.NewMemory(), nil)
	w.cycle(ctx)

	if n := fetcher.total.Load(); n != 0 {
		t.Errorf("fetched %d symbols after cancel, want 0", n)
	}
}

func TestWorker_StartStop(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.Price(1)},
	})
	st := store.NewMemory()

	cfg := Config{
		Interval:     10 * time.Millisecond,
		InitialDelay: 0,
	}
	w := New(cfg, mustSymbols(t, "A"), fetcher, st, nil)

	if !w.Start(context.Background()) {
		t.Fatal("first Start() = false, want true")
	}
	if w.Start(context.Background()) {
		t.Error("second Start() = true, want false")
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Cycles < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := w.Stats()
	if !stats.Started {
		t.Error("Stats().Started = false after Start")
	}
	if stats.Cycles < 2 {
		t.Errorf("Cycles = %d, want >= 2", stats.Cycles)
	}
	if st.Len() < 2 {
		t.Errorf("store Len() = %d, want >= 2", st.Len())
	}
}

func TestWorker_InitialDelayInterruptible(t *testing.T) {
	fetcher := newScriptedFetcher(nil)
	cfg := Config{Interval: time.Hour, InitialDelay: time.Hour}
	w := New(cfg, mustSymbols(t, "A"), fetcher, store.NewMemory(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if n := fetcher.total.Load(); n != 0 {
		t.Errorf("fetched %d times during initial delay, want 0", n)
	}
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w := New(DefaultConfig(), mustSymbols(t, "A"), newScriptedFetcher(nil), store.NewMemory(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Errorf("Stop() without Start error = %v", err)
	}
}

func TestWorker_ConcurrentStartLaunchesOnce(t *testing.T) {
	fetcher := newScriptedFetcher(map[string][]source.Result{
		"A": {source.Price(1)},
		"B": {source.Price(2)},
	})
	cfg := Config{Interval: time.Hour}
	w := New(cfg, mustSymbols(t, "A", "B"), fetcher, store.NewMemory(), nil)

	const triggers = 32
	var (
		wg       sync.WaitGroup
		launched atomic.Int32
		ready    = make(chan struct{})
	)
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			if w.Start(context.Background()) {
				launched.Add(1)
			}
		}()
	}
	close(ready)
	wg.Wait()

	if n := launched.Load(); n != 1 {
		t.Fatalf("%d triggers reported launching, want 1", n)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Cycles < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Give a duplicate loop, if any, a chance to run its first cycle too.
	time.Sleep(50 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if c := w.Stats().Cycles; c != 1 {
		t.Errorf("Cycles = %d, want exactly 1", c)
	}
	if n := fetcher.total.Load(); n != 2 {
		t.Errorf("fetch calls = %d, want 2 (one per symbol)", n)
	}
}

func TestWorker_HungFastPathStillPersistsFallback(t *testing.T) {
	var fallbackRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("interval") {
		case "1d":
			select {
			case <-time.After(400 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
			w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":1}}]}}`))
		case "1m":
			fallbackRequests.Add(1)
			w.Write([]byte(`{"chart":{"result":[{"timestamp":[1],"indicators":{"quote":[{"close":[42]}]}}]}}`))
		}
	}))
	defer server.Close()

	client := api.NewClient(server.URL, api.WithRetries(0, 0))
	fetcher := source.New(client, "1m").WithTierTimeout(300 * time.Millisecond)
	st := store.NewMemory()

	w := New(DefaultConfig(), mustSymbols(t, "A"), fetcher, st, nil)
	stats := w.cycle(context.Background())

	if stats.Persisted != 1 || stats.NoData != 0 {
		t.Errorf("cycle stats = %+v, want 1 persisted, 0 no-data", stats)
	}
	if n := fallbackRequests.Load(); n != 1 {
		t.Errorf("fallback requests = %d, want 1", n)
	}

	got, err := st.LastN(context.Background(), "A", 1)
	if err != nil {
		t.Fatalf("LastN() error = %v", err)
	}
	if len(got) != 1 || got[0].Price != 42 {
		t.Errorf("LastN() = %+v, want price 42", got)
	}
}
