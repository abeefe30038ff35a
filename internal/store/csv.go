package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/internal/domain"
)

var _ ResultWriter = (*CSVResultWriter)(nil)

// CSVResultWriter writes <base>_equity.csv and <base>_trades.csv in Dir.
// Cash amounts are rounded to cents; undefined values are empty cells.
type CSVResultWriter struct {
	Dir string
	nopCloser
}

var (
	equityHeader = []string{"timestamp", "close", "signal", "position_size", "net_wealth", "stop_loss_price"}
	tradeHeader  = []string{"timestamp", "side", "price", "quantity", "amount", "reason"}
)

// WriteResult writes both files and returns the equity file path.
func (w *CSVResultWriter) WriteResult(_ context.Context, res *domain.BacktestResult) (string, error) {
	base := filepath.Join(w.Dir, resultBase(res))

	equity := [][]string{equityHeader}
	for _, p := range res.EquityCurve() {
		stop := ""
		if p.HasStopLoss {
			stop = formatFloat(p.StopLoss)
		}
		equity = append(equity, []string{
			p.Timestamp.Format(time.RFC3339),
			formatFloat(p.Close),
			p.Signal.String(),
			formatFloat(p.PositionSize),
			formatMoney(p.NetWealth),
			stop,
		})
	}

	trades := [][]string{tradeHeader}
	for _, t := range res.Trades {
		trades = append(trades, []string{
			t.Timestamp.Format(time.RFC3339),
			string(t.Side),
			formatFloat(t.Price),
			formatFloat(t.Quantity),
			formatMoney(t.Amount),
			string(t.Reason),
		})
	}

	equityPath := base + "_equity.csv"
	if err := writeCSV(equityPath, equity); err != nil {
		return "", fmt.Errorf("writing equity curve: %w", err)
	}
	if err := writeCSV(base+"_trades.csv", trades); err != nil {
		return "", fmt.Errorf("writing trades: %w", err)
	}
	return equityPath, nil
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatMoney rounds to two decimals without binary float artefacts.
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
