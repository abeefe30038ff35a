package builtins

import (
	"errors"
	"testing"
	"time"

	"tradelab/internal/domain"
	"tradelab/internal/strategy"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.AddDate(0, 0, i),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func signals(t *testing.T, s strategy.Strategy, bars []domain.Bar) []domain.Signal {
	t.Helper()
	f, err := s.ComputeIndicators(bars)
	if err != nil {
		t.Fatalf("%s.ComputeIndicators: %v", s.Name(), err)
	}
	out := make([]domain.Signal, f.Len())
	for i := range out {
		out[i] = s.GenerateSignal(f.Row(i))
	}
	return out
}

func assertSignals(t *testing.T, got []domain.Signal, want ...domain.Signal) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d signals, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("signal[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

const (
	H = domain.SignalHold
	B = domain.SignalBuy
	S = domain.SignalSell
)

func TestSMACrossSignals(t *testing.T) {
	s, err := NewSMACross(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	// sma1 vs sma2: idx1 10>9.5 buy, idx2 8<9 sell, idx3 8=8 hold.
	got := signals(t, s, barsFromCloses(9, 10, 8, 8))
	assertSignals(t, got, H, B, S, H)
}

func TestSMACrossEqualWindowsHold(t *testing.T) {
	s, err := NewSMACross(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := signals(t, s, barsFromCloses(100, 101, 99))
	assertSignals(t, got, H, H, H)
}

func TestMomentumSignals(t *testing.T) {
	s, err := NewMomentum(1)
	if err != nil {
		t.Fatal(err)
	}
	got := signals(t, s, barsFromCloses(10, 11, 11, 9))
	assertSignals(t, got, H, B, H, S)
	if s.Warmup() != 2 {
		t.Errorf("Warmup() = %d, want 2", s.Warmup())
	}
}

func TestMeanReversionSignals(t *testing.T) {
	s, err := NewMeanReversion(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	// idx2 window [10,10,4]: mean 8, std sqrt(12) -> z = -1.155 buy.
	// idx3 window [10,4,16]: mean 10, std 6 -> z = 1 hold (not > 1).
	// idx4 window [4,16,22]: mean 14, std 9.165 -> z = 0.873 hold.
	// idx5 window [16,22,40]: mean 26, std 12.49 -> z = 1.12 sell.
	got := signals(t, s, barsFromCloses(10, 10, 4, 16, 22, 40))
	assertSignals(t, got, H, H, B, H, H, S)
}

func TestRSISignals(t *testing.T) {
	s, err := NewRSI(2, 70, 30)
	if err != nil {
		t.Fatal(err)
	}
	// idx2: deltas -1,-1 -> RSI 0 buy. idx3: -1,+2 -> RS 2 -> 66.7 hold.
	// idx4: +2,+2 -> RSI 100 sell.
	got := signals(t, s, barsFromCloses(10, 9, 8, 10, 12))
	assertSignals(t, got, H, H, B, H, S)
}

func TestRSIInsufficientHistoryHolds(t *testing.T) {
	s, err := NewRSI(14, 70, 30)
	if err != nil {
		t.Fatal(err)
	}
	closes := make([]float64, 13)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	for i, sig := range signals(t, s, barsFromCloses(closes...)) {
		if sig != domain.SignalHold {
			t.Errorf("signal[%d] = %v, want HOLD", i, sig)
		}
	}
}

func TestComputeIndicatorsDoesNotMutateInput(t *testing.T) {
	bars := barsFromCloses(1, 2, 3, 4)
	before := make([]domain.Bar, len(bars))
	copy(before, bars)

	params := map[string]strategy.Params{
		"sma-cross":      {"short": 1, "long": 2},
		"momentum":       {"lookback": 1},
		"mean-reversion": {"window": 2},
		"rsi":            {"period": 2},
	}
	reg := NewRegistry()
	for _, name := range reg.List() {
		s, err := reg.New(name, params[name])
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if _, err := s.ComputeIndicators(bars); err != nil {
			t.Fatalf("%s.ComputeIndicators: %v", name, err)
		}
	}
	for i := range bars {
		if bars[i] != before[i] {
			t.Errorf("bar %d mutated: %+v, was %+v", i, bars[i], before[i])
		}
	}
}

func TestRegistryDefaultsAndValidation(t *testing.T) {
	reg := NewRegistry()

	names := reg.List()
	want := []string{"mean-reversion", "momentum", "rsi", "sma-cross"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	s, err := reg.New("sma-cross", nil)
	if err != nil {
		t.Fatalf("New(sma-cross, nil): %v", err)
	}
	if p := s.Params(); p["short"] != 50 || p["long"] != 200 {
		t.Errorf("default sma-cross params = %v, want short=50 long=200", p)
	}

	bad := []struct {
		name   string
		params strategy.Params
	}{
		{"sma-cross", strategy.Params{"short": 0}},
		{"sma-cross", strategy.Params{"long": 2.5}},
		{"momentum", strategy.Params{"lookback": -1}},
		{"mean-reversion", strategy.Params{"window": 1}},
		{"mean-reversion", strategy.Params{"threshold": -1}},
		{"rsi", strategy.Params{"overbought": 20, "oversold": 30}},
		{"rsi", strategy.Params{"period": 0}},
		{"sma-cross", strategy.Params{"shrot": 5}},
		{"momentum", strategy.Params{"lookback": 5, "window": 3}},
		{"mean-reversion", strategy.Params{"period": 14}},
		{"rsi", strategy.Params{"overbougt": 80}},
	}
	for _, tt := range bad {
		if _, err := reg.New(tt.name, tt.params); !errors.Is(err, strategy.ErrInvalidParam) {
			t.Errorf("New(%s, %v) error = %v, want ErrInvalidParam", tt.name, tt.params, err)
		}
	}
}
