// Package feed supplies historical daily bars to the backtester from the
// Alpaca market data API or from the local Parquet store.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradelab/internal/domain"
	"tradelab/internal/store"
)

// Source provides daily bars for one symbol over [start, end].
type Source interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Compile-time interface checks.
var _ Source = (*AlpacaSource)(nil)
var _ Source = (*StoreSource)(nil)

// StoreSource reads bars previously saved in a BarStore.
type StoreSource struct {
	Store store.BarStore
}

// Bars reads bars from the underlying store.
func (s *StoreSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	return s.Store.ReadBars(ctx, symbol, start, end)
}

// Load fetches bars from src and checks that they form a valid, non-empty
// observation sequence.
func Load(ctx context.Context, src Source, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := src.Bars(ctx, strings.ToUpper(symbol), start, end)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, &domain.InvalidInputError{
			Index:  -1,
			Reason: fmt.Sprintf("no bars for %s between %s and %s", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly)),
		}
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// Sync copies bars from src into dst and returns how many were written.
func Sync(ctx context.Context, src Source, dst store.BarStore, symbol string, start, end time.Time) (int, error) {
	bars, err := Load(ctx, src, symbol, start, end)
	if err != nil {
		return 0, err
	}
	if err := dst.WriteBars(ctx, bars); err != nil {
		return 0, fmt.Errorf("storing %s: %w", symbol, err)
	}
	return len(bars), nil
}
