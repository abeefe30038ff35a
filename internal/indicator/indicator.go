// Package indicator implements causal rolling-window indicators over price
// series. Every function returns a slice aligned to its input, with NaN at
// indices where the window is not yet filled.
package indicator

import "math"

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// equalRuns gives, for each index, the length of the run of identical values
// ending there.
func equalRuns(x []float64) []int {
	runs := make([]int, len(x))
	for i := range x {
		runs[i] = 1
		if i > 0 && x[i] == x[i-1] {
			runs[i] = runs[i-1] + 1
		}
	}
	return runs
}

// sum adds x with Neumaier compensation.
func sum(x []float64) float64 {
	var s, c float64
	for _, v := range x {
		t := s + v
		if math.Abs(s) >= math.Abs(v) {
			c += (s - t) + v
		} else {
			c += (v - t) + s
		}
		s = t
	}
	return s + c
}

// SMA is the simple moving average over the last window points. Each window
// is summed independently and a window of identical values averages to that
// value exactly, so equal prices give equal averages for any window length.
func SMA(x []float64, window int) []float64 {
	out := nans(len(x))
	if window <= 0 {
		return out
	}
	runs := equalRuns(x)
	for i := window - 1; i < len(x); i++ {
		if runs[i] >= window {
			out[i] = x[i]
			continue
		}
		out[i] = sum(x[i-window+1:i+1]) / float64(window)
	}
	return out
}

// RollingStd is the rolling sample standard deviation (n-1 denominator).
// Windows shorter than two points are undefined; a constant window is 0.
func RollingStd(x []float64, window int) []float64 {
	out := nans(len(x))
	if window < 2 {
		return out
	}
	mean := SMA(x, window)
	runs := equalRuns(x)
	for i := window - 1; i < len(x); i++ {
		if runs[i] >= window {
			out[i] = 0
			continue
		}
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := x[j] - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// PctChange is the fractional change over periods steps. A zero base yields
// NaN.
func PctChange(x []float64, periods int) []float64 {
	out := nans(len(x))
	if periods <= 0 {
		return out
	}
	for i := periods; i < len(x); i++ {
		base := x[i-periods]
		if base == 0 {
			continue
		}
		out[i] = x[i]/base - 1
	}
	return out
}

// ZScore is (x - rolling mean) / rolling sample std. A zero std yields NaN.
func ZScore(x []float64, window int) []float64 {
	out := nans(len(x))
	mean := SMA(x, window)
	std := RollingStd(x, window)
	for i := range x {
		if math.IsNaN(std[i]) || std[i] == 0 {
			continue
		}
		out[i] = (x[i] - mean[i]) / std[i]
	}
	return out
}

// RSI is the relative strength index with gains and losses averaged as simple
// rolling means over period deltas. The first bar has no delta and is not
// counted as a zero move, so the first defined value is at index period
// rather than period-1. RSI is 100 when there are gains and no losses, and
// NaN when price did not move at all.
func RSI(x []float64, period int) []float64 {
	out := nans(len(x))
	if period <= 0 || len(x) <= period {
		return out
	}
	gains := make([]float64, len(x))
	losses := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	for i := period; i < len(x); i++ {
		avgGain := sum(gains[i-period+1:i+1]) / float64(period)
		avgLoss := sum(losses[i-period+1:i+1]) / float64(period)
		switch {
		case avgLoss == 0 && avgGain == 0:
			// flat window
		case avgLoss == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+avgGain/avgLoss)
		}
	}
	return out
}

// EMA is the exponential moving average with alpha 2/(span+1). Leading NaNs
// are skipped; the average is seeded with the SMA of the first span defined
// values.
func EMA(x []float64, span int) []float64 {
	out := nans(len(x))
	if span <= 0 {
		return out
	}
	start := 0
	for start < len(x) && math.IsNaN(x[start]) {
		start++
	}
	seedEnd := start + span - 1
	if seedEnd >= len(x) {
		return out
	}

	var seed float64
	for i := start; i <= seedEnd; i++ {
		seed += x[i]
	}
	out[seedEnd] = seed / float64(span)

	k := 2.0 / float64(span+1)
	for i := seedEnd + 1; i < len(x); i++ {
		out[i] = (x[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// MACD returns the MACD line (EMA(short) - EMA(long)), its signal line
// (EMA of the MACD line over signal) and the histogram (line - signal).
func MACD(x []float64, short, long, signal int) (line, sig, hist []float64) {
	fast := EMA(x, short)
	slow := EMA(x, long)
	line = nans(len(x))
	for i := range x {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) {
			continue
		}
		line[i] = fast[i] - slow[i]
	}
	sig = EMA(line, signal)
	hist = nans(len(x))
	for i := range x {
		if math.IsNaN(line[i]) || math.IsNaN(sig[i]) {
			continue
		}
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Bollinger returns the rolling mean and the bands k sample standard
// deviations above and below it.
func Bollinger(x []float64, window int, k float64) (mid, upper, lower []float64) {
	mid = SMA(x, window)
	std := RollingStd(x, window)
	upper = nans(len(x))
	lower = nans(len(x))
	for i := range x {
		if math.IsNaN(mid[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
	}
	return mid, upper, lower
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first
// element has no previous close and is NaN.
func TrueRange(high, low, close []float64) []float64 {
	n := min(len(high), len(low), len(close))
	out := nans(n)
	for i := 1; i < n; i++ {
		out[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}
	return out
}

// ATR is the average true range with Wilder smoothing, seeded with the SMA of
// the first period true ranges. The first defined value is at index period.
func ATR(high, low, close []float64, period int) []float64 {
	tr := TrueRange(high, low, close)
	out := nans(len(tr))
	if period <= 0 || len(tr) <= period {
		return out
	}
	var atr float64
	for i := 1; i <= period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)
	out[period] = atr
	for i := period + 1; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}
