package challenge

import (
	"github.com/shopspring/decimal"

	"tradesense/internal/models"
)

// fill is the ledger delta produced by one order against one position.
type fill struct {
	Balance decimal.Decimal
	Profit  decimal.Decimal
	// Position is the row to persist afterwards (ID 0 means insert). Nil when flat.
	Position *models.Position
	// Remove deletes the pre-existing row before Position is written.
	Remove bool
}

// execute applies an order to the current cash balance and the account's position
// in the order's asset. pos may be nil. It never mutates pos.
func execute(accountID uint64, balance decimal.Decimal, pos *models.Position, o Order) (fill, error) {
	var cur *models.Position
	if pos != nil {
		cp := *pos
		cur = &cp
	}
	if o.Side == models.SideBuy {
		if cur != nil && cur.IsShort() {
			return cover(accountID, balance, cur, o), nil
		}
		return buyLong(accountID, balance, cur, o)
	}
	if cur != nil && cur.IsLong() {
		return closeLong(balance, cur, o), nil
	}
	return openShort(accountID, balance, cur, o), nil
}

// cover buys back a short first and opens a long with whatever is left.
func cover(accountID uint64, balance decimal.Decimal, cur *models.Position, o Order) fill {
	coverQty := decimal.Min(o.Quantity, cur.Quantity.Abs())
	out := fill{
		Profit:  cur.AvgEntryPrice.Sub(o.Price).Mul(coverQty),
		Balance: balance.Sub(o.Price.Mul(coverQty)),
	}
	cur.Quantity = cur.Quantity.Add(coverQty)
	if cur.Quantity.IsZero() {
		out.Remove = true
	} else {
		out.Position = cur
	}
	remaining := o.Quantity.Sub(coverQty)
	if remaining.IsPositive() {
		out.Balance = out.Balance.Sub(o.Price.Mul(remaining))
		out.Position = &models.Position{
			AccountID:     accountID,
			Asset:         o.Asset,
			Quantity:      remaining,
			AvgEntryPrice: o.Price,
		}
	}
	return out
}

func buyLong(accountID uint64, balance decimal.Decimal, cur *models.Position, o Order) (fill, error) {
	cost := o.Price.Mul(o.Quantity)
	if balance.LessThan(cost) {
		return fill{}, ErrInsufficientBalance
	}
	out := fill{Balance: balance.Sub(cost), Profit: decimal.Zero}
	if cur == nil {
		out.Position = &models.Position{
			AccountID:     accountID,
			Asset:         o.Asset,
			Quantity:      o.Quantity,
			AvgEntryPrice: o.Price,
		}
		return out, nil
	}
	cur.AvgEntryPrice = weightedAverage(cur.AvgEntryPrice, cur.Quantity, o.Price, o.Quantity)
	cur.Quantity = cur.Quantity.Add(o.Quantity)
	out.Position = cur
	return out, nil
}

// closeLong sells at most the held quantity. Any excess is dropped, no short is opened.
func closeLong(balance decimal.Decimal, cur *models.Position, o Order) fill {
	sellQty := decimal.Min(o.Quantity, cur.Quantity)
	out := fill{
		Profit:  o.Price.Sub(cur.AvgEntryPrice).Mul(sellQty),
		Balance: balance.Add(o.Price.Mul(sellQty)),
	}
	cur.Quantity = cur.Quantity.Sub(sellQty)
	if cur.Quantity.Sign() <= 0 {
		out.Remove = true
		return out
	}
	out.Position = cur
	return out
}

func openShort(accountID uint64, balance decimal.Decimal, cur *models.Position, o Order) fill {
	out := fill{
		Balance: balance.Add(o.Price.Mul(o.Quantity)),
		Profit:  decimal.Zero,
	}
	if cur == nil || cur.Quantity.IsZero() {
		if cur != nil {
			out.Remove = true
		}
		out.Position = &models.Position{
			AccountID:     accountID,
			Asset:         o.Asset,
			Quantity:      o.Quantity.Neg(),
			AvgEntryPrice: o.Price,
		}
		return out
	}
	held := cur.Quantity.Abs()
	cur.AvgEntryPrice = weightedAverage(cur.AvgEntryPrice, held, o.Price, o.Quantity)
	cur.Quantity = held.Add(o.Quantity).Neg()
	out.Position = cur
	return out
}

func weightedAverage(avg, qty, price, addQty decimal.Decimal) decimal.Decimal {
	total := qty.Add(addQty)
	if total.IsZero() {
		return price
	}
	return avg.Mul(qty).Add(price.Mul(addQty)).DivRound(total, 16)
}

// equityOf values every position at cost on top of cash.
func equityOf(balance decimal.Decimal, positions []models.Position) decimal.Decimal {
	equity := balance
	for _, p := range positions {
		equity = equity.Add(p.CostValue())
	}
	return equity
}
