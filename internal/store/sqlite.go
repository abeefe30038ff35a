package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tradelab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultWriter = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	created_at       INTEGER NOT NULL,
	symbol           TEXT NOT NULL,
	strategy         TEXT NOT NULL,
	params           TEXT NOT NULL,
	initial_cash     REAL NOT NULL,
	final_balance    REAL NOT NULL,
	final_net_wealth REAL NOT NULL,
	performance_pct  REAL NOT NULL,
	total_trades     INTEGER NOT NULL,
	skipped_orders   INTEGER NOT NULL,
	sharpe_ratio     REAL,
	sortino_ratio    REAL,
	max_drawdown     REAL
);
CREATE TABLE IF NOT EXISTS equity (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	idx             INTEGER NOT NULL,
	ts              INTEGER NOT NULL,
	close           REAL NOT NULL,
	signal          TEXT NOT NULL,
	position_size   REAL NOT NULL,
	net_wealth      REAL NOT NULL,
	stop_loss_price REAL,
	PRIMARY KEY (run_id, idx)
);
CREATE TABLE IF NOT EXISTS trades (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	idx      INTEGER NOT NULL,
	ts       INTEGER NOT NULL,
	side     TEXT NOT NULL,
	price    REAL NOT NULL,
	quantity REAL NOT NULL,
	amount   REAL NOT NULL,
	reason   TEXT NOT NULL,
	PRIMARY KEY (run_id, idx)
);
`

// SQLiteStore records backtest runs with their equity curves and fills in a
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteResult saves res and returns the new run id.
func (s *SQLiteStore) WriteResult(ctx context.Context, res *domain.BacktestResult) (string, error) {
	return s.SaveResult(ctx, res)
}

// SaveResult inserts a run with its equity curve and trades in a single
// transaction. NaN metrics are stored as NULL.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *domain.BacktestResult) (string, error) {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, symbol, strategy, params, initial_cash,
			final_balance, final_net_wealth, performance_pct, total_trades,
			skipped_orders, sharpe_ratio, sortino_ratio, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UnixMilli(), res.Symbol, res.Strategy, string(params),
		res.InitialCash, res.FinalBalance, res.FinalNetWealth, res.PerformancePct,
		res.TotalTrades, res.SkippedOrders,
		nullFloat(res.SharpeRatio), nullFloat(res.SortinoRatio), nullFloat(res.MaxDrawdown),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	eqStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_id, idx, ts, close, signal, position_size, net_wealth, stop_loss_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer eqStmt.Close()
	for i, p := range res.EquityCurve() {
		stop := sql.NullFloat64{}
		if p.HasStopLoss {
			stop = nullFloat(p.StopLoss)
		}
		if _, err := eqStmt.ExecContext(ctx, id, i, p.Timestamp.UnixMilli(), p.Close,
			p.Signal.String(), p.PositionSize, p.NetWealth, stop); err != nil {
			return "", fmt.Errorf("inserting equity row %d: %w", i, err)
		}
	}

	trStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, idx, ts, side, price, quantity, amount, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer trStmt.Close()
	for i, t := range res.Trades {
		if _, err := trStmt.ExecContext(ctx, id, i, t.Timestamp.UnixMilli(), string(t.Side),
			t.Price, t.Quantity, t.Amount, string(t.Reason)); err != nil {
			return "", fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID             string
	CreatedAt      time.Time
	Symbol         string
	Strategy       string
	Params         map[string]float64
	FinalNetWealth float64
	PerformancePct float64
	TotalTrades    int
	SharpeRatio    float64
	SortinoRatio   float64
	MaxDrawdown    float64
}

// ListRuns returns the most recent runs first, up to limit (all when limit
// is not positive). NULL metrics are returned as NaN.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, symbol, strategy, params, final_net_wealth,
			performance_pct, total_trades, sharpe_ratio, sortino_ratio, max_drawdown
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r               RunSummary
			created         int64
			params          string
			sharpe, sortino sql.NullFloat64
			maxDD           sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &created, &r.Symbol, &r.Strategy, &params,
			&r.FinalNetWealth, &r.PerformancePct, &r.TotalTrades,
			&sharpe, &sortino, &maxDD); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("decoding params of run %s: %w", r.ID, err)
		}
		r.CreatedAt = time.UnixMilli(created)
		r.SharpeRatio = floatOrNaN(sharpe)
		r.SortinoRatio = floatOrNaN(sortino)
		r.MaxDrawdown = floatOrNaN(maxDD)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunTrades returns the trades recorded for a run in execution order.
func (s *SQLiteStore) RunTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, side, price, quantity, amount, reason
		FROM trades WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t            domain.Trade
			ts           int64
			side, reason string
		)
		if err := rows.Scan(&ts, &side, &t.Price, &t.Quantity, &t.Amount, &reason); err != nil {
			return nil, err
		}
		t.Timestamp = time.UnixMilli(ts).UTC()
		t.Side = domain.Side(side)
		t.Reason = domain.TradeReason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
