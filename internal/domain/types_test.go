package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 || bar.Volume != 0 {
		t.Error("expected zero OHLCV values for zero-value Bar")
	}

	// The zero Signal must be HOLD.
	var s Signal
	if s != SignalHold {
		t.Errorf("zero Signal = %v, want HOLD", s)
	}
	if SignalBuy.String() != "BUY" || SignalSell.String() != "SELL" || SignalHold.String() != "HOLD" {
		t.Error("Signal strings have unexpected values")
	}
	if SideBuy != "buy" || SideSell != "sell" {
		t.Error("Side constants have unexpected values")
	}
}

func TestValidateBars(t *testing.T) {
	good := []Bar{
		{Symbol: "AAPL", Timestamp: day(0), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
		{Symbol: "AAPL", Timestamp: day(1), Open: 2, High: 3, Low: 2, Close: 3, Volume: 10},
	}
	if err := ValidateBars(good); err != nil {
		t.Fatalf("ValidateBars(good) returned error: %v", err)
	}
	if err := ValidateBars(nil); err != nil {
		t.Fatalf("ValidateBars(nil) returned error: %v", err)
	}

	tests := []struct {
		name string
		bars []Bar
		idx  int
	}{
		{"duplicate timestamp", []Bar{{Timestamp: day(0)}, {Timestamp: day(0)}}, 1},
		{"decreasing timestamp", []Bar{{Timestamp: day(1)}, {Timestamp: day(0)}}, 1},
		{"negative close", []Bar{{Timestamp: day(0), Close: -1}}, 0},
		{"nan open", []Bar{{Timestamp: day(0), Open: math.NaN()}}, 0},
		{"negative volume", []Bar{{Timestamp: day(0), Volume: -5}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBars(tt.bars)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("ValidateBars error = %v, want ErrInvalidInput", err)
			}
			var ie *InvalidInputError
			if !errors.As(err, &ie) {
				t.Fatalf("error %T is not *InvalidInputError", err)
			}
			if ie.Index != tt.idx {
				t.Errorf("InvalidInputError.Index = %d, want %d", ie.Index, tt.idx)
			}
		})
	}
}

func TestInvalidPriceError(t *testing.T) {
	err := error(&InvalidPriceError{Timestamp: day(0), Price: 0})
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("errors.Is(%v, ErrInvalidPrice) = false", err)
	}
}

func TestFrameColumns(t *testing.T) {
	bars := []Bar{{Timestamp: day(0), Close: 10}, {Timestamp: day(1), Close: 11}}
	f := NewFrame(bars)

	if err := f.AddColumn("a", []float64{1, 2}); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if err := f.AddColumn("a", []float64{3, 4}); !errors.Is(err, ErrColumnExists) {
		t.Errorf("duplicate AddColumn error = %v, want ErrColumnExists", err)
	}
	if err := f.AddColumn("b", []float64{1}); err == nil {
		t.Error("AddColumn with wrong length should fail")
	}

	row := f.Row(1)
	if got := row.Value("a"); got != 2 {
		t.Errorf("Row(1).Value(a) = %v, want 2", got)
	}
	if got := row.Value("missing"); !math.IsNaN(got) {
		t.Errorf("Row(1).Value(missing) = %v, want NaN", got)
	}
	if row.Bar().Close != 11 {
		t.Errorf("Row(1).Bar().Close = %v, want 11", row.Bar().Close)
	}

	// The frame owns its bars.
	bars[0].Close = 99
	if f.Bar(0).Close != 10 {
		t.Errorf("frame bar mutated through caller slice: Close = %v", f.Bar(0).Close)
	}

	cols := f.Columns()
	if len(cols) != 1 || cols[0] != "a" {
		t.Errorf("Columns() = %v, want [a]", cols)
	}
}
