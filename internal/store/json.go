package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"tradelab/internal/domain"
)

var _ ResultWriter = (*JSONResultWriter)(nil)

// JSONResultWriter writes a result as one indented JSON document in Dir.
// Undefined metrics (NaN) are written as null.
type JSONResultWriter struct {
	Dir string
	nopCloser
}

type jsonResult struct {
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	Params         map[string]float64 `json:"params"`
	InitialCash    float64            `json:"initial_cash"`
	FinalBalance   float64            `json:"final_balance"`
	FinalNetWealth float64            `json:"final_net_wealth"`
	PerformancePct float64            `json:"performance_pct"`
	TotalTrades    int                `json:"total_trades"`
	SkippedOrders  int                `json:"skipped_orders"`
	SharpeRatio    *float64           `json:"sharpe_ratio"`
	SortinoRatio   *float64           `json:"sortino_ratio"`
	MaxDrawdown    *float64           `json:"max_drawdown"`
	Trades         []jsonTrade        `json:"trades"`
	Equity         []jsonEquity       `json:"equity"`
}

type jsonTrade struct {
	Timestamp time.Time `json:"timestamp"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
}

type jsonEquity struct {
	Timestamp    time.Time `json:"timestamp"`
	Close        float64   `json:"close"`
	Signal       string    `json:"signal"`
	PositionSize float64   `json:"position_size"`
	NetWealth    float64   `json:"net_wealth"`
	StopLoss     *float64  `json:"stop_loss_price,omitempty"`
}

// WriteResult writes <Dir>/<base>.json and returns its path.
func (w *JSONResultWriter) WriteResult(_ context.Context, res *domain.BacktestResult) (string, error) {
	doc := jsonResult{
		Symbol:         res.Symbol,
		Strategy:       res.Strategy,
		Params:         res.Params,
		InitialCash:    res.InitialCash,
		FinalBalance:   res.FinalBalance,
		FinalNetWealth: res.FinalNetWealth,
		PerformancePct: res.PerformancePct,
		TotalTrades:    res.TotalTrades,
		SkippedOrders:  res.SkippedOrders,
		SharpeRatio:    finite(res.SharpeRatio),
		SortinoRatio:   finite(res.SortinoRatio),
		MaxDrawdown:    finite(res.MaxDrawdown),
		Trades:         make([]jsonTrade, len(res.Trades)),
		Equity:         make([]jsonEquity, 0, len(res.Timestamps)),
	}
	for i, t := range res.Trades {
		doc.Trades[i] = jsonTrade{
			Timestamp: t.Timestamp,
			Side:      string(t.Side),
			Price:     t.Price,
			Quantity:  t.Quantity,
			Amount:    t.Amount,
			Reason:    string(t.Reason),
		}
	}
	for _, p := range res.EquityCurve() {
		e := jsonEquity{
			Timestamp:    p.Timestamp,
			Close:        p.Close,
			Signal:       p.Signal.String(),
			PositionSize: p.PositionSize,
			NetWealth:    p.NetWealth,
		}
		if p.HasStopLoss {
			e.StopLoss = finite(p.StopLoss)
		}
		doc.Equity = append(doc.Equity, e)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, resultBase(res)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// finite returns nil for NaN and infinities, which JSON cannot encode.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
