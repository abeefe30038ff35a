package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tradelab/internal/backtest"
	"tradelab/internal/config"
	"tradelab/internal/domain"
	"tradelab/internal/feed"
	"tradelab/internal/metrics"
	"tradelab/internal/optimizer"
	"tradelab/internal/report"
	"tradelab/internal/store"
	"tradelab/internal/strategy"
	"tradelab/internal/strategy/builtins"
	"tradelab/internal/util"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: tradelab <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version     Print the version\n")
	fmt.Fprintf(os.Stderr, "  strategies  List available strategies\n")
	fmt.Fprintf(os.Stderr, "  fetch       Download daily bars from Alpaca into the local store\n")
	fmt.Fprintf(os.Stderr, "  backtest    Run one backtest\n")
	fmt.Fprintf(os.Stderr, "  optimize    Grid-search strategy parameters\n")
	fmt.Fprintf(os.Stderr, "  runs        List runs recorded in the SQLite database\n")
	fmt.Fprintf(os.Stderr, "\nThe configuration file is read from $TRADELAB_CONFIG (default config/tradelab.yaml).\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "version":
		fmt.Printf("tradelab %s\n", version)
		return
	case "strategies":
		for _, name := range builtins.NewRegistry().List() {
			fmt.Println(name)
		}
		return
	case "-h", "--help", "help":
		usage()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, closer := util.NewLogger(cfg.Logging)
	defer closer.Close()
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "fetch":
		err = runFetch(ctx, cfg, args)
	case "backtest":
		err = runBacktest(ctx, cfg, args)
	case "optimize":
		err = runOptimize(ctx, cfg, args)
	case "runs":
		err = runList(ctx, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfgPath := "config/tradelab.yaml"
	if p := os.Getenv("TRADELAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) && os.Getenv("TRADELAB_CONFIG") == "" {
		return config.Default()
	}
	return cfg, err
}

// rangeFlags registers the flags shared by every command that reads bars and
// returns a function that applies them on top of the configured backtest.
func rangeFlags(fs *flag.FlagSet, b *config.Backtest) func() {
	symbol := fs.String("symbol", b.Symbol, "instrument symbol")
	start := fs.String("start", b.Start, "first date (YYYY-MM-DD)")
	end := fs.String("end", b.End, "last date (YYYY-MM-DD)")
	return func() {
		b.Symbol, b.Start, b.End = *symbol, *start, *end
	}
}

func runFetch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	apply := rangeFlags(fs, &cfg.Backtest)
	fs.Parse(args)
	apply()

	req, err := backtest.RequestFromConfig(cfg.Backtest)
	if err != nil {
		return err
	}
	if req.Symbol == "" {
		return errors.New("fetch: -symbol is required")
	}
	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	n, err := feed.Sync(ctx, feed.NewAlpacaSource(cfg.Alpaca), pstore, req.Symbol, req.Start, req.End)
	if err != nil {
		return err
	}
	slog.Info("fetched daily bars", "symbol", req.Symbol, "bars", n, "dataDir", cfg.Storage.DataDir)
	return nil
}

type runFlags struct {
	source string
	format string
	apply  func()
}

func commonFlags(fs *flag.FlagSet, cfg *config.Config) *runFlags {
	rf := &runFlags{}
	applyRange := rangeFlags(fs, &cfg.Backtest)
	strat := fs.String("strategy", cfg.Backtest.Strategy, "strategy name")
	cash := fs.Float64("cash", cfg.Backtest.InitialCash, "initial cash")
	fs.StringVar(&rf.source, "source", "store", "bar source: store or alpaca")
	fs.StringVar(&rf.format, "out", cfg.Output.Format, "result format: parquet, json, csv, db or none")
	rf.apply = func() {
		applyRange()
		cfg.Backtest.Strategy = *strat
		cfg.Backtest.InitialCash = *cash
	}
	return rf
}

func newBacktester(cfg *config.Config, source string, rec *metrics.Recorder) (*backtest.Backtester, error) {
	var src feed.Source
	switch source {
	case "store":
		src = &feed.StoreSource{Store: store.NewParquetStore(cfg.Storage.DataDir)}
	case "alpaca":
		src = feed.NewAlpacaSource(cfg.Alpaca)
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
	return backtest.NewBacktester(src, builtins.NewRegistry(), cfg, rec)
}

func runBacktest(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	rf := commonFlags(fs, cfg)
	params := fs.String("params", "", "strategy parameters, e.g. short=20,long=50")
	fs.Parse(args)
	rf.apply()

	req, err := backtest.RequestFromConfig(cfg.Backtest)
	if err != nil {
		return err
	}
	if *params != "" {
		if req.Params, err = parseParams(*params); err != nil {
			return err
		}
	}

	rec := metrics.New()
	bt, err := newBacktester(cfg, rf.source, rec)
	if err != nil {
		return err
	}
	res, err := bt.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Print(report.Summary(res))
	if err := export(ctx, cfg, rf.format, res); err != nil {
		return err
	}
	return writeMetrics(cfg, rec)
}

func runOptimize(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	rf := commonFlags(fs, cfg)
	gridFlag := fs.String("grid", "", "parameter grid, e.g. \"short=5,10,20;long=50,100\"")
	objective := fs.String("objective", cfg.Optimize.Objective, "performance, sharpe, sortino or max_drawdown")
	workers := fs.Int("workers", cfg.Optimize.Workers, "concurrent trials (0 = GOMAXPROCS)")
	timeout := fs.Duration("trial-timeout", cfg.Optimize.TrialTimeout, "per-trial time limit (0 = none)")
	top := fs.Int("top", 20, "trials to display (0 = all)")
	fs.Parse(args)
	rf.apply()
	cfg.Optimize.Objective = *objective
	cfg.Optimize.Workers = *workers
	cfg.Optimize.TrialTimeout = *timeout

	grid := backtest.GridFromConfig(cfg.Optimize)
	if *gridFlag != "" {
		var err error
		if grid, err = optimizer.ParseGrid(*gridFlag); err != nil {
			return err
		}
	}
	req, err := backtest.RequestFromConfig(cfg.Backtest)
	if err != nil {
		return err
	}

	rec := metrics.New()
	bt, err := newBacktester(cfg, rf.source, rec)
	if err != nil {
		return err
	}
	start := time.Now()
	rep, err := bt.Optimize(ctx, req, grid)
	if err != nil {
		return err
	}
	slog.Info("optimization finished", "trials", len(rep.Trials), "elapsed", time.Since(start).Round(time.Millisecond))

	fmt.Print(report.Trials(rep, *top))
	if rep.Best != nil {
		fmt.Println()
		fmt.Print(report.Summary(rep.Best.Result))
		if err := export(ctx, cfg, rf.format, rep.Best.Result); err != nil {
			return err
		}
	}
	return writeMetrics(cfg, rec)
}

func runList(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum runs to show (0 = all)")
	fs.Parse(args)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	runs, err := db.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	fmt.Print(report.Runs(runs))
	return nil
}

func export(ctx context.Context, cfg *config.Config, format string, res *domain.BacktestResult) error {
	if format == "none" {
		return nil
	}
	w, err := store.NewResultWriter(format, store.WriterOptions{
		Dir:        cfg.Output.Dir,
		SQLitePath: cfg.Storage.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer w.Close()
	ref, err := w.WriteResult(ctx, res)
	if err != nil {
		return err
	}
	slog.Info("result saved", "format", format, "ref", ref)
	return nil
}

func writeMetrics(cfg *config.Config, rec *metrics.Recorder) error {
	if cfg.Metrics.Textfile == "" {
		return nil
	}
	return rec.WriteTextfile(cfg.Metrics.Textfile)
}

// parseParams parses "k=v,k=v" into strategy parameters.
func parseParams(s string) (strategy.Params, error) {
	p := strategy.Params{}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("bad parameter %q, want name=value", kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("bad parameter %q: %w", kv, err)
		}
		p[strings.TrimSpace(name)] = f
	}
	return p, nil
}
