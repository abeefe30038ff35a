package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"tradelab/internal/config"
	"tradelab/internal/domain"
	"tradelab/internal/util"
)

// barsClient is the subset of *marketdata.Client used by AlpacaSource.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaSource fetches daily bars from the Alpaca market data API with rate
// limiting and retries.
type AlpacaSource struct {
	client     barsClient
	feed       string
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	log        *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource from the Alpaca configuration.
func NewAlpacaSource(cfg config.Alpaca) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return newAlpacaSource(marketdata.NewClient(opts), cfg)
}

func newAlpacaSource(client barsClient, cfg config.Alpaca) *AlpacaSource {
	limit := rate.Inf
	if cfg.RateLimitPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RateLimitPerMin))
	}
	return &AlpacaSource{
		client:     client,
		feed:       cfg.Feed,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		retryBase:  500 * time.Millisecond,
		log:        slog.Default().With("source", "alpaca"),
	}
}

// Bars fetches daily bars for symbol over [start, end], sorted by timestamp.
func (s *AlpacaSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	req := marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	}
	switch s.feed {
	case "iex":
		req.Feed = "iex"
	default:
		req.Feed = "sip"
	}

	symbol = strings.ToUpper(symbol)
	var raw []marketdata.Bar
	err := util.Retry(ctx, s.maxRetries+1, s.retryBase, 10*time.Second, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = s.client.GetBars(symbol, req)
		if err != nil {
			s.log.Warn("GetBars failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ab.Timestamp.UTC(),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	s.log.Debug("fetched bars", "symbol", symbol, "count", len(bars), "feed", req.Feed)
	return bars, nil
}
