// Package builtins provides built-in strategy implementations that ship with
// tradelab.
package builtins

import (
	"fmt"

	"tradelab/internal/domain"
	"tradelab/internal/indicator"
	"tradelab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// Column names written by SMACross.
const (
	ColSMAShort = "sma_short"
	ColSMALong  = "sma_long"
)

// SMACross implements a simple moving average crossover strategy. It
// generates a buy signal while the short-period SMA is above the long-period
// SMA, and a sell signal while it is below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) (*SMACross, error) {
	if short < 1 || long < 1 {
		return nil, fmt.Errorf("%w: sma-cross windows must be >= 1, got short=%d long=%d", strategy.ErrInvalidParam, short, long)
	}
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}, nil
}

func newSMACross(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Check("short", "long"); err != nil {
		return nil, err
	}
	short, err := p.Int("short", 50)
	if err != nil {
		return nil, err
	}
	long, err := p.Int("long", 200)
	if err != nil {
		return nil, err
	}
	return NewSMACross(short, long)
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Params returns the short and long periods.
func (s *SMACross) Params() strategy.Params {
	return strategy.Params{"short": float64(s.shortPeriod), "long": float64(s.longPeriod)}
}

// Warmup is the longer of the two periods.
func (s *SMACross) Warmup() int {
	return max(s.shortPeriod, s.longPeriod)
}

// ComputeIndicators attaches the short and long SMAs of the close price.
func (s *SMACross) ComputeIndicators(bars []domain.Bar) (*domain.Frame, error) {
	f := domain.NewFrame(bars)
	closes := f.Closes()
	if err := f.AddColumn(ColSMAShort, indicator.SMA(closes, s.shortPeriod)); err != nil {
		return nil, err
	}
	if err := f.AddColumn(ColSMALong, indicator.SMA(closes, s.longPeriod)); err != nil {
		return nil, err
	}
	return f, nil
}

// GenerateSignal compares the two averages. NaN comparisons are false, so the
// warmup period yields HOLD.
func (s *SMACross) GenerateSignal(row domain.Row) domain.Signal {
	short, long := row.Value(ColSMAShort), row.Value(ColSMALong)
	switch {
	case short > long:
		return domain.SignalBuy
	case short < long:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
