package indicator

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func assertSeries(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("%s[%d] = %v, want NaN", name, i, got[i])
			}
			continue
		}
		if !approx(got[i], want[i]) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

var nan = math.NaN()

func TestSMA(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assertSeries(t, "SMA(3)", SMA(x, 3), []float64{nan, nan, 2, 3, 4})
	assertSeries(t, "SMA(1)", SMA(x, 1), x)
	assertSeries(t, "SMA(0)", SMA(x, 0), []float64{nan, nan, nan, nan, nan})
	assertSeries(t, "SMA(10)", SMA(x, 10), []float64{nan, nan, nan, nan, nan})
}

func dropThenFlat() []float64 {
	x := make([]float64, 0, 60)
	for i := 0; i < 10; i++ {
		x = append(x, 100.7)
	}
	for i := 0; i < 50; i++ {
		x = append(x, 33.3)
	}
	return x
}

func TestFlatSegmentAfterMove(t *testing.T) {
	x := dropThenFlat()
	short, long := SMA(x, 3), SMA(x, 7)
	std, z := RollingStd(x, 5), ZScore(x, 5)
	rsi := RSI(x, 5)
	// From index 16 both windows lie inside the flat run.
	for i := 16; i < len(x); i++ {
		if short[i] != long[i] || short[i] != 33.3 {
			t.Fatalf("SMA(3)[%d] = %v, SMA(7)[%d] = %v, want both exactly 33.3", i, short[i], i, long[i])
		}
		if std[i] != 0 {
			t.Errorf("RollingStd[%d] = %v, want 0", i, std[i])
		}
		if !math.IsNaN(z[i]) {
			t.Errorf("ZScore[%d] = %v, want NaN", i, z[i])
		}
		if !math.IsNaN(rsi[i]) {
			t.Errorf("RSI[%d] = %v, want NaN", i, rsi[i])
		}
	}
}

func TestRollingStd(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := RollingStd(x, 8)
	// Sample std of the full series: sqrt(32/7).
	if !approx(got[7], math.Sqrt(32.0/7.0)) {
		t.Errorf("RollingStd(8)[7] = %v, want %v", got[7], math.Sqrt(32.0/7.0))
	}
	for i := 0; i < 7; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("RollingStd(8)[%d] = %v, want NaN", i, got[i])
		}
	}
	assertSeries(t, "RollingStd(1)", RollingStd(x[:2], 1), []float64{nan, nan})
}

func TestPctChange(t *testing.T) {
	x := []float64{100, 110, 0, 50}
	assertSeries(t, "PctChange(1)", PctChange(x, 1), []float64{nan, 0.1, -1, nan})
	assertSeries(t, "PctChange(2)", PctChange(x, 2), []float64{nan, nan, -1, 50.0/110.0 - 1})
}

func TestZScore(t *testing.T) {
	x := []float64{1, 2, 3, 3, 3, 3}
	got := ZScore(x, 3)
	// Window [1,2,3]: mean 2, std 1 -> z = 1.
	if !approx(got[2], 1) {
		t.Errorf("ZScore[2] = %v, want 1", got[2])
	}
	// Window [3,3,3]: zero std -> NaN.
	if !math.IsNaN(got[5]) {
		t.Errorf("ZScore[5] = %v, want NaN", got[5])
	}
}

func TestRSI(t *testing.T) {
	// Strictly rising: no losses, RSI 100 once defined.
	up := []float64{1, 2, 3, 4, 5}
	assertSeries(t, "RSI rising", RSI(up, 3), []float64{nan, nan, nan, 100, 100})

	// Flat series is undefined.
	flat := []float64{5, 5, 5, 5}
	assertSeries(t, "RSI flat", RSI(flat, 2), []float64{nan, nan, nan, nan})

	// Mixed: deltas +2, -1 over period 2 -> avg gain 1, avg loss 0.5, RS 2.
	mixed := []float64{10, 12, 11}
	assertSeries(t, "RSI mixed", RSI(mixed, 2), []float64{nan, nan, 100 - 100/3.0})

	// Too short for the period: all NaN, no panic.
	short := make([]float64, 10)
	for i := range short {
		short[i] = float64(i)
	}
	for i, v := range RSI(short, 14) {
		if !math.IsNaN(v) {
			t.Errorf("RSI(14) on 10 points [%d] = %v, want NaN", i, v)
		}
	}
}

func TestEMA(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	// Seed SMA(3) = 2 at index 2, then 2 + (4-2)*0.5 = 3.
	assertSeries(t, "EMA(3)", EMA(x, 3), []float64{nan, nan, 2, 3})

	withLead := []float64{nan, 2, 4, 6}
	assertSeries(t, "EMA(2) leading NaN", EMA(withLead, 2), []float64{nan, nan, 3, 3 + (6-3)*2.0/3.0})
}

func TestMACD(t *testing.T) {
	x := make([]float64, 40)
	for i := range x {
		x[i] = float64(i + 1)
	}
	line, sig, hist := MACD(x, 3, 6, 4)
	if !math.IsNaN(line[4]) || math.IsNaN(line[5]) {
		t.Errorf("MACD line should first be defined at index 5: line[4]=%v line[5]=%v", line[4], line[5])
	}
	if !math.IsNaN(sig[7]) || math.IsNaN(sig[8]) {
		t.Errorf("MACD signal should first be defined at index 8: sig[7]=%v sig[8]=%v", sig[7], sig[8])
	}
	for i := 8; i < len(x); i++ {
		if !approx(hist[i], line[i]-sig[i]) {
			t.Errorf("hist[%d] = %v, want %v", i, hist[i], line[i]-sig[i])
		}
	}
	// A linear uptrend keeps the fast EMA above the slow one.
	if line[39] <= 0 {
		t.Errorf("MACD line on uptrend = %v, want > 0", line[39])
	}
}

func TestBollinger(t *testing.T) {
	x := []float64{1, 2, 3}
	mid, upper, lower := Bollinger(x, 3, 2)
	if !approx(mid[2], 2) || !approx(upper[2], 4) || !approx(lower[2], 0) {
		t.Errorf("Bollinger = (%v, %v, %v), want (2, 4, 0)", mid[2], upper[2], lower[2])
	}
	if !math.IsNaN(upper[1]) {
		t.Errorf("upper[1] = %v, want NaN", upper[1])
	}
}

func TestATR(t *testing.T) {
	high := []float64{10, 12, 13, 12}
	low := []float64{8, 9, 11, 10}
	close := []float64{9, 11, 12, 11}
	tr := TrueRange(high, low, close)
	assertSeries(t, "TrueRange", tr, []float64{nan, 3, 2, 2})

	// Seed (3+2)/2 = 2.5, then (2.5*1 + 2)/2 = 2.25.
	assertSeries(t, "ATR(2)", ATR(high, low, close, 2), []float64{nan, nan, 2.5, 2.25})
}

func TestIndicatorsAreCausal(t *testing.T) {
	x := []float64{5, 3, 8, 6, 9, 4, 7, 10, 2, 6}
	prefix := x[:6]
	checks := map[string]func([]float64) []float64{
		"SMA":        func(v []float64) []float64 { return SMA(v, 3) },
		"RollingStd": func(v []float64) []float64 { return RollingStd(v, 3) },
		"ZScore":     func(v []float64) []float64 { return ZScore(v, 3) },
		"RSI":        func(v []float64) []float64 { return RSI(v, 3) },
		"EMA":        func(v []float64) []float64 { return EMA(v, 3) },
	}
	for name, fn := range checks {
		full := fn(x)
		part := fn(prefix)
		for i := range prefix {
			if math.IsNaN(full[i]) != math.IsNaN(part[i]) || (!math.IsNaN(full[i]) && !approx(full[i], part[i])) {
				t.Errorf("%s[%d] depends on future data: full=%v prefix=%v", name, i, full[i], part[i])
			}
		}
	}
}
