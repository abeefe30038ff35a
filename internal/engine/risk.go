package engine

import (
	"fmt"
	"log/slog"
	"math"

	"tradelab/internal/domain"
)

// ColStopLoss is the frame column written by ApplyStopLoss.
const ColStopLoss = "stop_loss_price"

// RiskManager applies stop-loss levels, risk-based position sizing and a
// maximum drawdown limit. Each field is a fraction in [0, 1); zero disables
// the corresponding rule.
//
//   - StopLossPct: distance of the stop below the entry price (0.05 for 5%).
//   - RiskPerTrade: fraction of capital put at risk by one entry.
//   - MaxDrawdown: largest tolerated loss of net wealth against initial cash.
type RiskManager struct {
	StopLossPct  float64
	RiskPerTrade float64
	MaxDrawdown  float64

	log *slog.Logger
}

// NewRiskManager creates a RiskManager with the specified thresholds.
func NewRiskManager(stopLossPct, riskPerTrade, maxDrawdown float64) (*RiskManager, error) {
	rm := &RiskManager{
		StopLossPct:  stopLossPct,
		RiskPerTrade: riskPerTrade,
		MaxDrawdown:  maxDrawdown,
		log:          slog.Default().With("component", "risk"),
	}
	if err := rm.Validate(); err != nil {
		return nil, err
	}
	return rm, nil
}

// Validate checks that every threshold lies in [0, 1).
func (rm *RiskManager) Validate() error {
	for _, f := range [...]struct {
		name string
		v    float64
	}{
		{"stop_loss_pct", rm.StopLossPct},
		{"risk_per_trade", rm.RiskPerTrade},
		{"max_drawdown", rm.MaxDrawdown},
	} {
		if math.IsNaN(f.v) || f.v < 0 || f.v >= 1 {
			return fmt.Errorf("risk: %s must be in [0, 1), got %v", f.name, f.v)
		}
	}
	return nil
}

// StopLossPrice returns the stop level for a position entered at price.
func (rm *RiskManager) StopLossPrice(price float64) float64 {
	return price * (1 - rm.StopLossPct)
}

// ApplyStopLoss adds the per-bar stop level as column ColStopLoss.
func (rm *RiskManager) ApplyStopLoss(f *domain.Frame) error {
	closes := f.Closes()
	levels := make([]float64, len(closes))
	for i, c := range closes {
		levels[i] = rm.StopLossPrice(c)
	}
	return f.AddColumn(ColStopLoss, levels)
}

// PositionSize returns the number of units such that a move from price down
// to the stop level loses RiskPerTrade of capital. The result is not rounded.
// It is 0 when no stop-loss is configured.
func (rm *RiskManager) PositionSize(capital, price float64) (float64, error) {
	if price <= 0 || math.IsNaN(price) {
		return 0, &domain.InvalidPriceError{Price: price}
	}
	if rm.StopLossPct == 0 || capital <= 0 {
		return 0, nil
	}
	return capital * rm.RiskPerTrade / (price * rm.StopLossPct), nil
}

// CheckDrawdown reports whether current net wealth has fallen more than
// MaxDrawdown below initial. It is always false when no limit is configured.
func (rm *RiskManager) CheckDrawdown(current, initial float64) bool {
	if rm.MaxDrawdown == 0 || initial <= 0 {
		return false
	}
	if current/initial >= 1-rm.MaxDrawdown {
		return false
	}
	rm.logger().Warn("drawdown limit breached",
		"net_wealth", current,
		"initial", initial,
		"max_drawdown", rm.MaxDrawdown,
	)
	return true
}

func (rm *RiskManager) logger() *slog.Logger {
	if rm.log == nil {
		return slog.Default()
	}
	return rm.log
}
