// Package domain defines the core value types shared by the backtester:
// price observations, trading signals, executed trades, indicator frames and
// backtest results.
package domain

import (
	"math"
	"time"
)

// Bar is a single OHLCV observation of one instrument.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Signal is the decision a strategy emits for one observation. The zero value
// is SignalHold.
type Signal int8

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

// String returns "HOLD", "BUY" or "SELL".
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Side identifies the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeReason records why the engine executed a trade.
type TradeReason string

const (
	ReasonSignal      TradeReason = "signal"
	ReasonStopLoss    TradeReason = "stop_loss"
	ReasonDrawdown    TradeReason = "drawdown"
	ReasonLiquidation TradeReason = "liquidation"
)

// Trade is one executed fill in the backtest ledger. Amount is the signed cash
// change caused by the fill, costs included.
type Trade struct {
	Timestamp time.Time
	Price     float64
	Side      Side
	Quantity  float64
	Amount    float64
	Reason    TradeReason
}

// ValidateBars checks that bars are strictly increasing by timestamp and that
// every price and volume is finite and non-negative. An empty slice is valid.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		for _, p := range [...]struct {
			name string
			v    float64
		}{
			{"open", b.Open},
			{"high", b.High},
			{"low", b.Low},
			{"close", b.Close},
		} {
			if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v < 0 {
				return &InvalidInputError{Index: i, Reason: p.name + " price must be finite and non-negative"}
			}
		}
		if b.Volume < 0 {
			return &InvalidInputError{Index: i, Reason: "volume must be non-negative"}
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return &InvalidInputError{Index: i, Reason: "timestamps must be strictly increasing"}
		}
	}
	return nil
}

// Closes returns the close prices of bars in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
