package builtins

import (
	"fmt"

	"tradelab/internal/domain"
	"tradelab/internal/indicator"
	"tradelab/internal/strategy"
)

var _ strategy.Strategy = (*Momentum)(nil)

// ColMomentum is the column written by Momentum.
const ColMomentum = "momentum"

// Momentum buys while the close is above its value lookback bars ago and
// sells while it is below.
type Momentum struct {
	lookback int
}

// NewMomentum creates a Momentum strategy over the given lookback.
func NewMomentum(lookback int) (*Momentum, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("%w: momentum lookback must be >= 1, got %d", strategy.ErrInvalidParam, lookback)
	}
	return &Momentum{lookback: lookback}, nil
}

func newMomentum(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Check("lookback"); err != nil {
		return nil, err
	}
	lookback, err := p.Int("lookback", 14)
	if err != nil {
		return nil, err
	}
	return NewMomentum(lookback)
}

// Name returns "momentum".
func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Params() strategy.Params {
	return strategy.Params{"lookback": float64(m.lookback)}
}

func (m *Momentum) Warmup() int { return m.lookback + 1 }

func (m *Momentum) ComputeIndicators(bars []domain.Bar) (*domain.Frame, error) {
	f := domain.NewFrame(bars)
	if err := f.AddColumn(ColMomentum, indicator.PctChange(f.Closes(), m.lookback)); err != nil {
		return nil, err
	}
	return f, nil
}

func (m *Momentum) GenerateSignal(row domain.Row) domain.Signal {
	v := row.Value(ColMomentum)
	switch {
	case v > 0:
		return domain.SignalBuy
	case v < 0:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
