// Package backtest wires a bar source, the strategy registry and the
// simulation settings from the configuration into single runs and grid
// searches.
package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradelab/internal/config"
	"tradelab/internal/domain"
	"tradelab/internal/engine"
	"tradelab/internal/feed"
	"tradelab/internal/metrics"
	"tradelab/internal/optimizer"
	"tradelab/internal/strategy"
)

// Request selects the instrument, date range and strategy of a run.
type Request struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Strategy string
	Params   strategy.Params
}

// Backtester replays historical bars from a source through a strategy.
type Backtester struct {
	source   feed.Source
	registry *strategy.Registry
	engine   engine.Config
	risk     *engine.RiskManager
	metrics  *metrics.Recorder

	objective    optimizer.Objective
	workers      int
	trialTimeout time.Duration
}

// NewBacktester creates a Backtester that reads bars from source and looks up
// strategies in registry. Simulation, risk and search settings come from cfg.
func NewBacktester(source feed.Source, registry *strategy.Registry, cfg *config.Config, rec *metrics.Recorder) (*Backtester, error) {
	ec := EngineConfig(cfg.Backtest)
	if err := ec.Validate(); err != nil {
		return nil, err
	}
	var rm *engine.RiskManager
	if cfg.Risk.Enabled() {
		var err error
		rm, err = engine.NewRiskManager(cfg.Risk.StopLossPct, cfg.Risk.RiskPerTrade, cfg.Risk.MaxDrawdown)
		if err != nil {
			return nil, err
		}
	}
	obj, err := optimizer.ParseObjective(cfg.Optimize.Objective)
	if err != nil {
		return nil, err
	}
	return &Backtester{
		source:       source,
		registry:     registry,
		engine:       ec,
		risk:         rm,
		metrics:      rec,
		objective:    obj,
		workers:      cfg.Optimize.Workers,
		trialTimeout: cfg.Optimize.TrialTimeout,
	}, nil
}

// EngineConfig maps the backtest section of the configuration onto the
// engine settings.
func EngineConfig(b config.Backtest) engine.Config {
	return engine.Config{
		InitialCash:      b.InitialCash,
		FixedCost:        b.FixedCost,
		ProportionalCost: b.ProportionalCost,
		Sizing:           engine.Sizing(b.Sizing),
		Fractional:       b.Fractional,
		OrderSize:        b.OrderSize,
		RiskFreeRate:     b.RiskFreeRate,
	}
}

// RequestFromConfig builds a Request from the backtest section. An empty end
// date means today and an empty start date one year before the end.
func RequestFromConfig(b config.Backtest) (Request, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if b.End != "" {
		t, err := time.Parse(time.DateOnly, b.End)
		if err != nil {
			return Request{}, fmt.Errorf("backtest end: %w", err)
		}
		end = t
	}
	start := end.AddDate(-1, 0, 0)
	if b.Start != "" {
		t, err := time.Parse(time.DateOnly, b.Start)
		if err != nil {
			return Request{}, fmt.Errorf("backtest start: %w", err)
		}
		start = t
	}
	if start.After(end) {
		return Request{}, fmt.Errorf("backtest start %s is after end %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return Request{
		Symbol:   strings.ToUpper(b.Symbol),
		Start:    start,
		End:      end,
		Strategy: b.Strategy,
		Params:   strategy.Params(b.Params).Clone(),
	}, nil
}

// Run executes one backtest of req.
func (bt *Backtester) Run(ctx context.Context, req Request) (*domain.BacktestResult, error) {
	s, err := bt.registry.New(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}
	bars, err := bt.load(ctx, req)
	if err != nil {
		return nil, err
	}

	var rm *engine.RiskManager
	if bt.risk != nil {
		rm, err = engine.NewRiskManager(bt.risk.StopLossPct, bt.risk.RiskPerTrade, bt.risk.MaxDrawdown)
		if err != nil {
			return nil, err
		}
	}
	eng, err := engine.New(s, bt.engine, engine.WithRiskManager(rm), engine.WithMetrics(bt.metrics))
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx, bars)
}

// Optimize runs a grid search of req.Strategy over grid. req.Params is
// ignored; each trial takes its parameters from the grid.
func (bt *Backtester) Optimize(ctx context.Context, req Request, grid optimizer.Grid) (*optimizer.Report, error) {
	factory, ok := bt.registry.Get(req.Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: %s", strategy.ErrUnknownStrategy, req.Strategy)
	}
	bars, err := bt.load(ctx, req)
	if err != nil {
		return nil, err
	}
	opt, err := optimizer.New(factory, optimizer.Options{
		Engine:       bt.engine,
		Risk:         bt.risk,
		Objective:    bt.objective,
		Workers:      bt.workers,
		TrialTimeout: bt.trialTimeout,
		Metrics:      bt.metrics,
	})
	if err != nil {
		return nil, err
	}
	return opt.Run(ctx, bars, grid)
}

// GridFromConfig converts the configured grid axes.
func GridFromConfig(o config.Optimize) optimizer.Grid {
	g := make(optimizer.Grid, len(o.Grid))
	for i, p := range o.Grid {
		g[i] = optimizer.Param{Name: p.Name, Values: append([]float64(nil), p.Values...)}
	}
	return g
}

func (bt *Backtester) load(ctx context.Context, req Request) ([]domain.Bar, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("backtest: no symbol")
	}
	return feed.Load(ctx, bt.source, req.Symbol, req.Start, req.End)
}
