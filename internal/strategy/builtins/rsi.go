package builtins

import (
	"fmt"

	"tradelab/internal/domain"
	"tradelab/internal/indicator"
	"tradelab/internal/strategy"
)

var _ strategy.Strategy = (*RSI)(nil)

// ColRSI is the column written by RSI.
const ColRSI = "rsi"

// RSI buys when the relative strength index is oversold and sells when it is
// overbought.
type RSI struct {
	period     int
	overbought float64
	oversold   float64
}

// NewRSI creates an RSI strategy. Levels must satisfy
// 0 <= oversold < overbought <= 100.
func NewRSI(period int, overbought, oversold float64) (*RSI, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: rsi period must be >= 1, got %d", strategy.ErrInvalidParam, period)
	}
	if !(oversold >= 0 && oversold < overbought && overbought <= 100) {
		return nil, fmt.Errorf("%w: rsi levels must satisfy 0 <= oversold < overbought <= 100, got %v/%v",
			strategy.ErrInvalidParam, oversold, overbought)
	}
	return &RSI{period: period, overbought: overbought, oversold: oversold}, nil
}

func newRSI(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Check("period", "overbought", "oversold"); err != nil {
		return nil, err
	}
	period, err := p.Int("period", 14)
	if err != nil {
		return nil, err
	}
	return NewRSI(period, p.Float("overbought", 70), p.Float("oversold", 30))
}

// Name returns "rsi".
func (r *RSI) Name() string { return "rsi" }

func (r *RSI) Params() strategy.Params {
	return strategy.Params{
		"period":     float64(r.period),
		"overbought": r.overbought,
		"oversold":   r.oversold,
	}
}

// Warmup is period deltas, i.e. period+1 bars.
func (r *RSI) Warmup() int { return r.period + 1 }

func (r *RSI) ComputeIndicators(bars []domain.Bar) (*domain.Frame, error) {
	f := domain.NewFrame(bars)
	if err := f.AddColumn(ColRSI, indicator.RSI(f.Closes(), r.period)); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *RSI) GenerateSignal(row domain.Row) domain.Signal {
	v := row.Value(ColRSI)
	switch {
	case v < r.oversold:
		return domain.SignalBuy
	case v > r.overbought:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
