// Package store persists daily bars and backtest results. Bars live in
// Parquet files; results are exported through a ResultWriter selected by
// format name.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradelab/internal/domain"
)

// ErrUnsupportedFormat is returned by NewResultWriter for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported result format")

// BarStore persists and retrieves daily OHLCV bars.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing any stored bar with the
	// same symbol and timestamp.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end] in timestamp order.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ResultWriter exports a backtest result. WriteResult returns where the result
// went: a file path or a run id.
type ResultWriter interface {
	WriteResult(ctx context.Context, res *domain.BacktestResult) (string, error)
	Close() error
}

// WriterOptions locates the output of file and database writers.
type WriterOptions struct {
	Dir        string
	SQLitePath string
}

// NewResultWriter returns the writer for format: "parquet", "json", "csv" or
// "db".
func NewResultWriter(format string, opts WriterOptions) (ResultWriter, error) {
	switch strings.ToLower(format) {
	case "parquet":
		return &ParquetResultWriter{Dir: opts.Dir}, nil
	case "json":
		return &JSONResultWriter{Dir: opts.Dir}, nil
	case "csv":
		return &CSVResultWriter{Dir: opts.Dir}, nil
	case "db", "sqlite":
		return NewSQLiteStore(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// resultBase is the file name stem for an exported result. The random suffix
// keeps repeated exports of the same run from overwriting each other.
func resultBase(res *domain.BacktestResult) string {
	symbol := res.Symbol
	if symbol == "" {
		symbol = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s", strings.ToUpper(symbol), res.Strategy, uuid.NewString()[:8])
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
