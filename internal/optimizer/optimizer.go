// Package optimizer runs exhaustive grid searches over strategy parameters.
// Each trial builds its own strategy, risk manager, engine and copy of the
// input, so trials may run in parallel without sharing state.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"tradelab/internal/domain"
	"tradelab/internal/engine"
	"tradelab/internal/metrics"
	"tradelab/internal/strategy"
)

// ErrInsufficientHistory marks trials whose strategy needs more bars than the
// input holds.
var ErrInsufficientHistory = errors.New("insufficient history")

// Objective names the result statistic that ranks trials. Higher is better.
type Objective string

const (
	ObjectivePerformance Objective = "performance"
	ObjectiveSharpe      Objective = "sharpe"
	ObjectiveSortino     Objective = "sortino"
	ObjectiveMaxDrawdown Objective = "max_drawdown"
)

// ParseObjective validates s. An empty string selects ObjectivePerformance.
func ParseObjective(s string) (Objective, error) {
	switch o := Objective(s); o {
	case "":
		return ObjectivePerformance, nil
	case ObjectivePerformance, ObjectiveSharpe, ObjectiveSortino, ObjectiveMaxDrawdown:
		return o, nil
	default:
		return "", fmt.Errorf("unknown objective %q", s)
	}
}

// Score extracts the objective from res. NaN scores as -Inf.
func (o Objective) Score(res *domain.BacktestResult) float64 {
	var v float64
	switch o {
	case ObjectiveSharpe:
		v = res.SharpeRatio
	case ObjectiveSortino:
		v = res.SortinoRatio
	case ObjectiveMaxDrawdown:
		v = res.MaxDrawdown
	default:
		v = res.PerformancePct
	}
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

// Status is the outcome of one trial.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
)

// Trial records one parameter combination and its outcome. Objective is -Inf
// unless Status is StatusOK.
type Trial struct {
	Index     int
	Params    strategy.Params
	Status    Status
	Objective float64
	Result    *domain.BacktestResult
	Err       error
	Duration  time.Duration
}

// Report is the outcome of a search. Trials are in enumeration order. Best is
// nil when no trial succeeded.
type Report struct {
	Objective Objective
	Best      *Trial
	Trials    []Trial
}

// Counts returns the number of trials per status.
func (r *Report) Counts() map[Status]int {
	out := make(map[Status]int, 3)
	for _, t := range r.Trials {
		out[t.Status]++
	}
	return out
}

// Options configures an Optimizer.
type Options struct {
	Engine engine.Config
	// Risk, when non-nil, is copied into a fresh RiskManager for each trial.
	Risk      *engine.RiskManager
	Objective Objective
	// Workers bounds concurrent trials; zero means GOMAXPROCS.
	Workers int
	// TrialTimeout bounds each trial; zero means no limit.
	TrialTimeout time.Duration
	Metrics      *metrics.Recorder
}

// Optimizer searches a parameter grid for one strategy factory.
type Optimizer struct {
	factory strategy.Factory
	opts    Options
	log     *slog.Logger
}

// New creates an Optimizer that builds trial strategies with factory.
func New(factory strategy.Factory, opts Options) (*Optimizer, error) {
	if factory == nil {
		return nil, errors.New("optimizer: nil strategy factory")
	}
	obj, err := ParseObjective(string(opts.Objective))
	if err != nil {
		return nil, err
	}
	opts.Objective = obj
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.TrialTimeout < 0 {
		return nil, fmt.Errorf("optimizer: negative trial timeout %v", opts.TrialTimeout)
	}
	if opts.Engine.Sizing == "" {
		opts.Engine.Sizing = engine.SizingCash
	}
	if err := opts.Engine.Validate(); err != nil {
		return nil, err
	}
	if opts.Risk != nil {
		if err := opts.Risk.Validate(); err != nil {
			return nil, err
		}
	}
	return &Optimizer{
		factory: factory,
		opts:    opts,
		log:     slog.Default().With("component", "optimizer"),
	}, nil
}

// Run evaluates every combination of grid against bars and returns the
// report. Individual trial failures are recorded, not returned; Run fails only
// for an invalid grid, invalid input or a cancelled context.
func (o *Optimizer) Run(ctx context.Context, bars []domain.Bar, grid Grid) (*Report, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, &domain.InvalidInputError{Index: -1, Reason: "empty observation sequence"}
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	combos := grid.Combinations()
	trials := make([]Trial, len(combos))
	o.log.Info("starting grid search",
		"trials", len(combos),
		"workers", o.opts.Workers,
		"objective", o.opts.Objective,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, p := range combos {
		g.Go(func() error {
			trials[i] = o.trial(gctx, i, p, bars)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Objective: o.opts.Objective, Trials: trials}
	for i := range trials {
		t := &trials[i]
		if t.Status != StatusOK {
			continue
		}
		if report.Best == nil || t.Objective > report.Best.Objective {
			report.Best = t
		}
	}

	counts := report.Counts()
	attrs := []any{
		"ok", counts[StatusOK],
		"failed", counts[StatusFailed],
		"timed_out", counts[StatusTimedOut],
	}
	if report.Best != nil {
		attrs = append(attrs, "best_index", report.Best.Index, "best_objective", report.Best.Objective)
	}
	o.log.Info("grid search complete", attrs...)
	return report, nil
}

// trial runs one combination in isolation. Panics are recovered into a
// failed trial.
func (o *Optimizer) trial(ctx context.Context, i int, p strategy.Params, bars []domain.Bar) (t Trial) {
	start := time.Now()
	t = Trial{Index: i, Params: p, Status: StatusFailed, Objective: math.Inf(-1)}
	defer func() {
		if r := recover(); r != nil {
			t.Status = StatusFailed
			t.Result = nil
			t.Objective = math.Inf(-1)
			t.Err = fmt.Errorf("trial %d panicked: %v", i, r)
		}
		t.Duration = time.Since(start)
		o.opts.Metrics.RecordTrial(string(t.Status), t.Duration)
		if t.Err != nil {
			o.log.Debug("trial did not complete", "trial", i, "params", p, "status", t.Status, "error", t.Err)
		}
	}()

	s, err := o.factory(p.Clone())
	if err != nil {
		t.Err = err
		return t
	}
	if w := s.Warmup(); w > len(bars) {
		t.Err = fmt.Errorf("%w: %s needs %d bars, have %d", ErrInsufficientHistory, s.Name(), w, len(bars))
		return t
	}

	var rm *engine.RiskManager
	if o.opts.Risk != nil {
		rm, err = engine.NewRiskManager(o.opts.Risk.StopLossPct, o.opts.Risk.RiskPerTrade, o.opts.Risk.MaxDrawdown)
		if err != nil {
			t.Err = err
			return t
		}
	}
	eng, err := engine.New(s, o.opts.Engine,
		engine.WithRiskManager(rm),
		engine.WithMetrics(o.opts.Metrics),
		engine.WithLogger(o.log.With("trial", i, "strategy", s.Name())),
	)
	if err != nil {
		t.Err = err
		return t
	}

	runCtx := ctx
	if o.opts.TrialTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.opts.TrialTimeout)
		defer cancel()
	}
	res, err := eng.Run(runCtx, slices.Clone(bars))
	if err != nil {
		t.Err = err
		if errors.Is(err, context.DeadlineExceeded) {
			t.Status = StatusTimedOut
		}
		return t
	}

	t.Status = StatusOK
	t.Result = res
	t.Objective = o.opts.Objective.Score(res)
	return t
}
