// Package engine replays a strategy over a historical observation sequence,
// simulating fills against a cash ledger with costs and an optional risk
// overlay, and produces a BacktestResult.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"tradelab/internal/domain"
	"tradelab/internal/metrics"
	"tradelab/internal/performance"
	"tradelab/internal/strategy"
)

// ErrEngineClosed is returned by Run on an engine that has already run.
var ErrEngineClosed = errors.New("engine closed")

// Sizing selects how many units a BUY takes when no explicit order size or
// risk sizing applies.
type Sizing string

const (
	// SizingCash buys cash/price units. Costs are not netted out, so with
	// non-zero costs the order may be unaffordable and skipped.
	SizingCash Sizing = "cash"
	// SizingAffordable buys the largest size whose cost including fees fits
	// in cash.
	SizingAffordable Sizing = "affordable"
)

// Config holds the simulation parameters of one run.
type Config struct {
	InitialCash      float64
	FixedCost        float64
	ProportionalCost float64
	Sizing           Sizing
	// Fractional allows non-integral unit counts.
	Fractional bool
	// OrderSize, when positive, fixes the units of every signal order.
	OrderSize float64
	// RiskFreeRate is the per-step rate used by the Sharpe and Sortino ratios.
	RiskFreeRate float64
}

// DefaultConfig returns a Config with 10 000 initial cash, no costs and cash
// sizing.
func DefaultConfig() Config {
	return Config{InitialCash: 10000, Sizing: SizingCash}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !(c.InitialCash > 0) || math.IsInf(c.InitialCash, 0) {
		return fmt.Errorf("engine: initial cash must be positive, got %v", c.InitialCash)
	}
	if !(c.FixedCost >= 0) || !(c.ProportionalCost >= 0) {
		return fmt.Errorf("engine: costs must be non-negative, got fixed=%v proportional=%v", c.FixedCost, c.ProportionalCost)
	}
	if !(c.OrderSize >= 0) {
		return fmt.Errorf("engine: order size must be non-negative, got %v", c.OrderSize)
	}
	switch c.Sizing {
	case "", SizingCash, SizingAffordable:
	default:
		return fmt.Errorf("engine: unknown sizing policy %q", c.Sizing)
	}
	return nil
}

// State is the lifecycle state of an Engine.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateRunning:
		return "RUNNING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine runs one backtest. It moves INITIALIZED -> RUNNING -> CLOSED and
// cannot be reused; build a new Engine per run.
type Engine struct {
	cfg      Config
	strategy strategy.Strategy
	risk     *RiskManager
	metrics  *metrics.Recorder
	log      *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithRiskManager attaches a risk overlay.
func WithRiskManager(rm *RiskManager) Option {
	return func(e *Engine) { e.risk = rm }
}

// WithMetrics records runs, fills and skipped orders on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine for s with the given configuration.
func New(s strategy.Strategy, cfg Config, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, errors.New("engine: nil strategy")
	}
	if cfg.Sizing == "" {
		cfg.Sizing = SizingCash
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		strategy: s,
		state:    StateInitialized,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.risk != nil {
		if err := e.risk.Validate(); err != nil {
			return nil, err
		}
	}
	if e.log == nil {
		e.log = slog.Default().With("engine", s.Name())
	}
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run replays bars in timestamp order and returns the result. The bars slice
// is not modified. Any open position is liquidated at the last close.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar) (*domain.BacktestResult, error) {
	e.mu.Lock()
	if e.state != StateInitialized {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.state = StateRunning
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.state = StateClosed
		e.mu.Unlock()
	}()

	start := time.Now()
	res, err := e.run(ctx, bars)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.metrics.RecordRun(e.strategy.Name(), outcome, time.Since(start))
	return res, err
}

func (e *Engine) run(ctx context.Context, bars []domain.Bar) (*domain.BacktestResult, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	frame, err := e.strategy.ComputeIndicators(bars)
	if err != nil {
		return nil, fmt.Errorf("computing indicators for %s: %w", e.strategy.Name(), err)
	}
	stopLoss := e.risk != nil && e.risk.StopLossPct > 0
	if stopLoss {
		if err := e.risk.ApplyStopLoss(frame); err != nil {
			return nil, fmt.Errorf("applying stop-loss: %w", err)
		}
	}

	n := frame.Len()
	l := &ledger{
		cash:      e.cfg.InitialCash,
		fixedCost: e.cfg.FixedCost,
		propCost:  e.cfg.ProportionalCost,
	}
	res := &domain.BacktestResult{
		Strategy:     e.strategy.Name(),
		Params:       map[string]float64(e.strategy.Params().Clone()),
		InitialCash:  e.cfg.InitialCash,
		Timestamps:   make([]time.Time, n),
		Close:        make([]float64, n),
		Signals:      make([]domain.Signal, n),
		PositionSize: make([]float64, n),
		NetWealth:    make([]float64, n),
	}
	if n > 0 {
		res.Symbol = frame.Bar(0).Symbol
	}

	var (
		entryStop float64
		halted    bool
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := frame.Row(i)
		bar := row.Bar()
		price := bar.Close
		sig := e.strategy.GenerateSignal(row)

		res.Timestamps[i] = bar.Timestamp
		res.Close[i] = price
		res.Signals[i] = sig

		switch {
		case halted:
		case e.risk != nil && e.risk.CheckDrawdown(l.netWealth(price), e.cfg.InitialCash):
			halted = true
			e.log.Warn("halting after drawdown breach", "timestamp", bar.Timestamp, "net_wealth", l.netWealth(price))
			if l.position > 0 {
				if err := e.sellAll(l, bar, domain.ReasonDrawdown); err != nil {
					return nil, err
				}
			}
		case stopLoss && l.position > 0 && price < entryStop:
			e.log.Debug("stop-loss triggered", "timestamp", bar.Timestamp, "close", price, "stop", entryStop)
			if err := e.sellAll(l, bar, domain.ReasonStopLoss); err != nil {
				return nil, err
			}
		case sig == domain.SignalBuy:
			filled, err := e.buy(l, bar)
			if err != nil {
				return nil, err
			}
			if filled && stopLoss {
				entryStop = e.risk.StopLossPrice(price)
			}
		case sig == domain.SignalSell:
			if err := e.sell(l, bar); err != nil {
				return nil, err
			}
		}

		if i == n-1 && l.position > 0 {
			if err := e.sellAll(l, bar, domain.ReasonLiquidation); err != nil {
				return nil, err
			}
			if l.position > 0 {
				e.log.Warn("final liquidation unfillable", "position", l.position, "cash", l.cash)
			}
		}

		res.PositionSize[i] = l.position
		res.NetWealth[i] = l.netWealth(price)
	}

	if stopLoss {
		res.StopLoss, _ = frame.Column(ColStopLoss)
	}
	res.FinalBalance = l.cash
	res.FinalNetWealth = l.cash
	if n > 0 {
		res.FinalNetWealth = res.NetWealth[n-1]
	}
	res.PerformancePct = (res.FinalNetWealth - e.cfg.InitialCash) / e.cfg.InitialCash * 100
	res.Trades = l.trades
	res.TotalTrades = len(l.trades)
	res.SkippedOrders = l.skipped

	returns := performance.Returns(res.NetWealth)
	res.SharpeRatio = performance.Sharpe(returns, e.cfg.RiskFreeRate)
	res.SortinoRatio = performance.Sortino(returns, e.cfg.RiskFreeRate)
	res.MaxDrawdown = performance.MaxDrawdown(res.NetWealth)

	e.log.Debug("backtest complete",
		"symbol", res.Symbol,
		"bars", n,
		"trades", res.TotalTrades,
		"skipped", res.SkippedOrders,
		"final_net_wealth", res.FinalNetWealth,
	)
	return res, nil
}

// buy sizes and submits a signal BUY. It reports whether a fill happened.
func (e *Engine) buy(l *ledger, bar domain.Bar) (bool, error) {
	price := bar.Close
	if price <= 0 {
		return false, &domain.InvalidPriceError{Timestamp: bar.Timestamp, Price: price}
	}

	var size float64
	switch {
	case e.cfg.OrderSize > 0:
		size = e.cfg.OrderSize
	case e.risk != nil && e.risk.RiskPerTrade > 0:
		s, err := e.risk.PositionSize(l.cash, price)
		if err != nil {
			return false, err
		}
		size = s
	case e.cfg.Sizing == SizingAffordable:
		size = (l.cash - l.fixedCost) / (price * (1 + l.propCost))
	default:
		size = l.cash / price
	}
	if !e.cfg.Fractional {
		size = math.Floor(size)
	}

	if !l.buy(bar.Timestamp, size, price, domain.ReasonSignal) {
		e.skip(l, bar, domain.SideBuy, size)
		return false, nil
	}
	e.metrics.RecordTrade(string(domain.SideBuy), string(domain.ReasonSignal))
	return true, nil
}

// sell submits a signal SELL for OrderSize units or the whole position.
func (e *Engine) sell(l *ledger, bar domain.Bar) error {
	price := bar.Close
	if price <= 0 {
		return &domain.InvalidPriceError{Timestamp: bar.Timestamp, Price: price}
	}
	size := l.position
	if e.cfg.OrderSize > 0 {
		size = e.cfg.OrderSize
	}
	if !l.sell(bar.Timestamp, size, price, domain.ReasonSignal) {
		e.skip(l, bar, domain.SideSell, size)
		return nil
	}
	e.metrics.RecordTrade(string(domain.SideSell), string(domain.ReasonSignal))
	return nil
}

// sellAll closes the whole position for a risk or liquidation reason.
func (e *Engine) sellAll(l *ledger, bar domain.Bar, reason domain.TradeReason) error {
	price := bar.Close
	if price <= 0 {
		return &domain.InvalidPriceError{Timestamp: bar.Timestamp, Price: price}
	}
	size := l.position
	if !l.sell(bar.Timestamp, size, price, reason) {
		e.skip(l, bar, domain.SideSell, size)
		return nil
	}
	e.metrics.RecordTrade(string(domain.SideSell), string(reason))
	return nil
}

func (e *Engine) skip(l *ledger, bar domain.Bar, side domain.Side, size float64) {
	l.skipped++
	e.metrics.RecordSkipped(string(side))
	e.log.Debug("order skipped",
		"timestamp", bar.Timestamp,
		"side", side,
		"size", size,
		"price", bar.Close,
		"cash", l.cash,
		"position", l.position,
	)
}
