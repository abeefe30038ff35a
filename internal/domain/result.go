package domain

import "time"

// BacktestResult is the immutable outcome of one backtest run. Every series
// is aligned to Timestamps. StopLoss is nil when no stop-loss overlay was
// applied. Ratio fields may be NaN when undefined.
type BacktestResult struct {
	Symbol   string
	Strategy string
	Params   map[string]float64

	InitialCash    float64
	FinalBalance   float64
	FinalNetWealth float64
	PerformancePct float64
	TotalTrades    int
	SkippedOrders  int
	Trades         []Trade

	Timestamps   []time.Time
	Close        []float64
	Signals      []Signal
	PositionSize []float64
	NetWealth    []float64
	StopLoss     []float64

	SharpeRatio  float64
	SortinoRatio float64
	MaxDrawdown  float64
}

// EquityPoint is one row of the equity curve, used by exporters.
type EquityPoint struct {
	Timestamp    time.Time
	Close        float64
	Signal       Signal
	PositionSize float64
	NetWealth    float64
	StopLoss     float64
	HasStopLoss  bool
}

// EquityCurve flattens the aligned series into rows.
func (r *BacktestResult) EquityCurve() []EquityPoint {
	points := make([]EquityPoint, len(r.Timestamps))
	for i := range r.Timestamps {
		p := EquityPoint{
			Timestamp:    r.Timestamps[i],
			Close:        r.Close[i],
			Signal:       r.Signals[i],
			PositionSize: r.PositionSize[i],
			NetWealth:    r.NetWealth[i],
		}
		if r.StopLoss != nil {
			p.StopLoss = r.StopLoss[i]
			p.HasStopLoss = true
		}
		points[i] = p
	}
	return points
}
