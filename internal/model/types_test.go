package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewSymbolSet(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "keeps order", in: []string{"SOL-USD", "BTC-USD"}, want: []string{"SOL-USD", "BTC-USD"}},
		{name: "drops duplicates", in: []string{"A", "B", "A"}, want: []string{"A", "B"}},
		{name: "empty set", in: nil, wantErr: true},
		{name: "empty symbol", in: []string{"A", ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NewSymbolSet(tt.in...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewSymbolSet(%v) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSymbolSet(%v) error = %v", tt.in, err)
			}

			got := set.Symbols()
			if len(got) != len(tt.want) {
				t.Fatalf("Symbols() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Symbols()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewSymbolSet_EmptyIsSentinel(t *testing.T) {
	_, err := NewSymbolSet()
	if !errors.Is(err, ErrEmptySymbolSet) {
		t.Errorf("error = %v, want ErrEmptySymbolSet", err)
	}
}

func TestSymbolSet_SymbolsReturnsCopy(t *testing.T) {
	set, err := NewSymbolSet("A", "B")
	if err != nil {
		t.Fatalf("NewSymbolSet error = %v", err)
	}

	got := set.Symbols()
	got[0] = "MUTATED"

	if set.Symbols()[0] != "A" {
		t.Error("mutating Symbols() result changed the set")
	}
	if !set.Contains("A") || set.Contains("MUTATED") {
		t.Error("Contains() reflects caller mutation")
	}
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
}

func TestObservation_Event(t *testing.T) {
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	obs := Observation{ID: 7, Symbol: "BTC-USD", Price: 42000.5, ObservedAt: ts}

	ev := obs.Event()

	if ev.Symbol != "BTC-USD" {
		t.Errorf("Symbol = %q, want BTC-USD", ev.Symbol)
	}
	if ev.Price != 42000.5 {
		t.Errorf("Price = %v, want 42000.5", ev.Price)
	}
	if !ev.Time.Equal(ts) {
		t.Errorf("Time = %v, want %v", ev.Time, ts)
	}
}
