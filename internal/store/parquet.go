package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradelab/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ ResultWriter = (*ParquetResultWriter)(nil)

// ParquetStore implements BarStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// EquityRecord is the Parquet schema for one step of a result's equity curve.
type EquityRecord struct {
	Timestamp    int64    `parquet:"timestamp,timestamp(millisecond)"`
	Close        float64  `parquet:"close"`
	Signal       string   `parquet:"signal"`
	PositionSize float64  `parquet:"position_size"`
	NetWealth    float64  `parquet:"net_wealth"`
	StopLoss     *float64 `parquet:"stop_loss_price,optional"`
}

// FillRecord is the Parquet schema for an executed simulated trade.
type FillRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Side      string  `parquet:"side"`
	Price     float64 `parquet:"price"`
	Quantity  float64 `parquet:"quantity"`
	Amount    float64 `parquet:"amount"`
	Reason    string  `parquet:"reason"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: strings.ToUpper(b.Symbol), year: b.Timestamp.Year()}
		groups[k] = append(groups[k], toBarRecord(b))
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		// Read existing records to merge.
		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reading bars for %s/%d: %w", k.symbol, k.year, err)
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and time
// range. Missing year files are skipped.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.barPath(symbol, year)

		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:    r.Symbol,
				Timestamp: ts,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "daily", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func toBarRecord(b domain.Bar) BarRecord {
	return BarRecord{
		Symbol:    strings.ToUpper(b.Symbol),
		Timestamp: b.Timestamp.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

// ---------------------------------------------------------------------------
// Result export
// ---------------------------------------------------------------------------

// ParquetResultWriter writes a result as two files in Dir:
// <base>_equity.parquet and <base>_trades.parquet.
type ParquetResultWriter struct {
	Dir string
	nopCloser
}

// WriteResult writes the equity curve and fills and returns the equity file
// path.
func (w *ParquetResultWriter) WriteResult(_ context.Context, res *domain.BacktestResult) (string, error) {
	base := filepath.Join(w.Dir, resultBase(res))

	curve := res.EquityCurve()
	equity := make([]EquityRecord, len(curve))
	for i, p := range curve {
		rec := EquityRecord{
			Timestamp:    p.Timestamp.UnixMilli(),
			Close:        p.Close,
			Signal:       p.Signal.String(),
			PositionSize: p.PositionSize,
			NetWealth:    p.NetWealth,
		}
		if p.HasStopLoss && !math.IsNaN(p.StopLoss) {
			v := p.StopLoss
			rec.StopLoss = &v
		}
		equity[i] = rec
	}

	fills := make([]FillRecord, len(res.Trades))
	for i, t := range res.Trades {
		fills[i] = FillRecord{
			Timestamp: t.Timestamp.UnixMilli(),
			Side:      string(t.Side),
			Price:     t.Price,
			Quantity:  t.Quantity,
			Amount:    t.Amount,
			Reason:    string(t.Reason),
		}
	}

	equityPath := base + "_equity.parquet"
	if err := writeParquetFile(equityPath, equity); err != nil {
		return "", fmt.Errorf("writing equity curve: %w", err)
	}
	if err := writeParquetFile(base+"_trades.parquet", fills); err != nil {
		return "", fmt.Errorf("writing trades: %w", err)
	}
	return equityPath, nil
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
