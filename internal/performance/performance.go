// Package performance computes return and risk statistics over an equity
// curve. Degenerate inputs produce NaN rather than errors.
package performance

import "math"

// Returns gives the step returns equity[i]/equity[i-1] - 1 for i >= 1. A zero
// previous equity yields a 0 return.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			continue
		}
		out[i-1] = equity[i]/prev - 1
	}
	return out
}

// Sharpe is (mean - rf) / sample std of returns.
func Sharpe(returns []float64, rf float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	mean, std := meanStd(returns)
	if degenerate(mean, std) {
		return math.NaN()
	}
	return (mean - rf) / std
}

// Sortino is (mean - rf) / sample std of the negative returns only. It needs
// at least two negative returns.
func Sortino(returns []float64, rf float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return math.NaN()
	}
	mean, _ := meanStd(returns)
	downMean, std := meanStd(downside)
	if degenerate(downMean, std) {
		return math.NaN()
	}
	return (mean - rf) / std
}

// MaxDrawdown is the most negative equity/runningMax - 1. It is 0 for empty
// or non-decreasing curves.
func MaxDrawdown(equity []float64) float64 {
	var peak, worst float64
	for i, v := range equity {
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// degenerate reports a std that is zero up to rounding of values around mean.
func degenerate(mean, std float64) bool {
	return math.IsNaN(std) || std <= 1e-12*math.Abs(mean)
}

func meanStd(x []float64) (mean, std float64) {
	n := float64(len(x))
	for _, v := range x {
		mean += v
	}
	mean /= n
	if len(x) < 2 {
		return mean, math.NaN()
	}
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
