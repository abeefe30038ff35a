package builtins

import (
	"fmt"
	"math"

	"tradelab/internal/domain"
	"tradelab/internal/indicator"
	"tradelab/internal/strategy"
)

var _ strategy.Strategy = (*MeanReversion)(nil)

// Column names written by MeanReversion.
const (
	ColRollingMean = "rolling_mean"
	ColRollingStd  = "rolling_std"
	ColZScore      = "zscore"
)

// MeanReversion trades the z-score of the close against its rolling mean:
// buy when price is stretched below the mean, sell when stretched above.
type MeanReversion struct {
	window    int
	threshold float64
}

// NewMeanReversion creates a MeanReversion strategy. The window needs at
// least two bars for a sample standard deviation.
func NewMeanReversion(window int, threshold float64) (*MeanReversion, error) {
	if window < 2 {
		return nil, fmt.Errorf("%w: mean-reversion window must be >= 2, got %d", strategy.ErrInvalidParam, window)
	}
	if threshold < 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: mean-reversion threshold must be >= 0, got %v", strategy.ErrInvalidParam, threshold)
	}
	return &MeanReversion{window: window, threshold: threshold}, nil
}

func newMeanReversion(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Check("window", "threshold"); err != nil {
		return nil, err
	}
	window, err := p.Int("window", 50)
	if err != nil {
		return nil, err
	}
	return NewMeanReversion(window, p.Float("threshold", 2))
}

// Name returns "mean-reversion".
func (m *MeanReversion) Name() string { return "mean-reversion" }

func (m *MeanReversion) Params() strategy.Params {
	return strategy.Params{"window": float64(m.window), "threshold": m.threshold}
}

func (m *MeanReversion) Warmup() int { return m.window }

func (m *MeanReversion) ComputeIndicators(bars []domain.Bar) (*domain.Frame, error) {
	f := domain.NewFrame(bars)
	closes := f.Closes()
	cols := []struct {
		name   string
		values []float64
	}{
		{ColRollingMean, indicator.SMA(closes, m.window)},
		{ColRollingStd, indicator.RollingStd(closes, m.window)},
		{ColZScore, indicator.ZScore(closes, m.window)},
	}
	for _, c := range cols {
		if err := f.AddColumn(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (m *MeanReversion) GenerateSignal(row domain.Row) domain.Signal {
	z := row.Value(ColZScore)
	switch {
	case z < -m.threshold:
		return domain.SignalBuy
	case z > m.threshold:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
