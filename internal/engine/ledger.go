package engine

import (
	"time"

	"tradelab/internal/domain"
)

// ledger tracks cash, the open position and the fills of a single run.
// Invariant: cash >= 0 and position >= 0 after every operation.
type ledger struct {
	cash     float64
	position float64
	trades   []domain.Trade
	skipped  int

	fixedCost float64
	propCost  float64
}

// buyCost is the cash needed to buy size units at price.
func (l *ledger) buyCost(size, price float64) float64 {
	return size*price*(1+l.propCost) + l.fixedCost
}

// sellProceeds is the cash received for selling size units at price.
func (l *ledger) sellProceeds(size, price float64) float64 {
	return size*price*(1-l.propCost) - l.fixedCost
}

// buy applies the fill if size is positive and affordable. It reports whether
// the fill was applied.
func (l *ledger) buy(ts time.Time, size, price float64, reason domain.TradeReason) bool {
	if size <= 0 {
		return false
	}
	cost := l.buyCost(size, price)
	if cost > l.cash {
		return false
	}
	l.cash -= cost
	l.position += size
	l.trades = append(l.trades, domain.Trade{
		Timestamp: ts,
		Price:     price,
		Side:      domain.SideBuy,
		Quantity:  size,
		Amount:    -cost,
		Reason:    reason,
	})
	return true
}

// sell applies the fill if 0 < size <= position and the proceeds do not drive
// cash negative. It reports whether the fill was applied.
func (l *ledger) sell(ts time.Time, size, price float64, reason domain.TradeReason) bool {
	if size <= 0 || size > l.position {
		return false
	}
	proceeds := l.sellProceeds(size, price)
	if l.cash+proceeds < 0 {
		return false
	}
	l.cash += proceeds
	l.position -= size
	l.trades = append(l.trades, domain.Trade{
		Timestamp: ts,
		Price:     price,
		Side:      domain.SideSell,
		Quantity:  size,
		Amount:    proceeds,
		Reason:    reason,
	})
	return true
}

func (l *ledger) netWealth(price float64) float64 {
	return l.cash + l.position*price
}
