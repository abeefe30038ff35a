// Package report renders backtest results, optimizer reports and stored runs
// for the terminal.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"tradelab/internal/domain"
	"tradelab/internal/optimizer"
	"tradelab/internal/store"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	bestStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// Money formats v with two decimals, or "n/a" when undefined.
func Money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Percent formats v (already in percent) with two decimals.
func Percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// Ratio formats a dimensionless statistic with four decimals.
func Ratio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(4)
}

func signed(v float64, s string) string {
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	default:
		return s
	}
}

// Params renders parameters as "k=v" pairs in key order.
func Params(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, decimal.NewFromFloat(p[k]).String())
	}
	return strings.Join(parts, " ")
}

// Summary renders the headline numbers of one result.
func Summary(res *domain.BacktestResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", res.Symbol, res.Strategy)))
	if len(res.Params) > 0 {
		b.WriteString("  " + dimStyle.Render(Params(res.Params)))
	}
	b.WriteString("\n")

	if n := len(res.Timestamps); n > 0 {
		row(&b, "Period", fmt.Sprintf("%s .. %s (%d bars)",
			res.Timestamps[0].Format("2006-01-02"), res.Timestamps[n-1].Format("2006-01-02"), n))
	}
	row(&b, "Initial cash", Money(res.InitialCash))
	row(&b, "Final balance", Money(res.FinalBalance))
	row(&b, "Final net wealth", Money(res.FinalNetWealth))
	row(&b, "Performance", signed(res.PerformancePct, Percent(res.PerformancePct)))
	row(&b, "Trades", fmt.Sprintf("%d (%d skipped orders)", res.TotalTrades, res.SkippedOrders))
	row(&b, "Sharpe", Ratio(res.SharpeRatio))
	row(&b, "Sortino", Ratio(res.SortinoRatio))
	row(&b, "Max drawdown", signed(res.MaxDrawdown, Percent(res.MaxDrawdown*100)))
	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(fmt.Sprintf("  %-18s", label)))
	b.WriteString(value)
	b.WriteString("\n")
}

// Trials renders the top trials of an optimizer report ranked by objective,
// ties kept in enumeration order. top <= 0 shows every trial.
func Trials(rep *optimizer.Report, top int) string {
	ranked := make([]optimizer.Trial, len(rep.Trials))
	copy(ranked, rep.Trials)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Objective > ranked[j].Objective })
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	counts := rep.Counts()
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Grid search: %d trials, objective %s", len(rep.Trials), rep.Objective)))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  ok=%d failed=%d timed_out=%d",
		counts[optimizer.StatusOK], counts[optimizer.StatusFailed], counts[optimizer.StatusTimedOut])))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-5s %-10s %12s %10s %10s %10s  %s",
		"#", "status", "objective", "perf", "sharpe", "max_dd", "params")))
	b.WriteString("\n")

	for _, t := range ranked {
		perf, sharpe, dd := math.NaN(), math.NaN(), math.NaN()
		if t.Result != nil {
			perf, sharpe, dd = t.Result.PerformancePct, t.Result.SharpeRatio, t.Result.MaxDrawdown*100
		}
		line := fmt.Sprintf("  %-5d %-10s %12s %10s %10s %10s  %s",
			t.Index, t.Status, Ratio(t.Objective), Percent(perf), Ratio(sharpe), Percent(dd), Params(t.Params))
		switch {
		case rep.Best != nil && t.Index == rep.Best.Index:
			line = bestStyle.Render(line)
		case t.Status != optimizer.StatusOK:
			line = dimStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if rep.Best == nil {
		b.WriteString(lossStyle.Render("  no trial completed successfully"))
		b.WriteString("\n")
	}
	return b.String()
}

// Runs renders stored run summaries, newest first.
func Runs(runs []store.RunSummary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-36s  %-16s  %-8s  %-15s %14s %10s %10s",
		"id", "created", "symbol", "strategy", "net wealth", "perf", "sharpe")))
	b.WriteString("\n")
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%-36s  %-16s  %-8s  %-15s %14s %10s %10s",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.Strategy,
			Money(r.FinalNetWealth), Percent(r.PerformancePct), Ratio(r.SharpeRatio)))
		b.WriteString("\n")
	}
	return b.String()
}
