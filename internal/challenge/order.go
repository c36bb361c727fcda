package challenge

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradesense/internal/models"
)

type Order struct {
	AccountID  uint64
	Asset      string
	Side       string
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	TakeProfit *decimal.Decimal
	StopLoss   *decimal.Decimal
}

type TradeResult struct {
	TradeID uint64
	Profit  decimal.Decimal
	Equity  decimal.Decimal
	Status  string
}

func (o Order) normalized() Order {
	o.Asset = strings.TrimSpace(o.Asset)
	o.Side = strings.ToLower(strings.TrimSpace(o.Side))
	return o
}

func (o Order) validate() error {
	if !o.Quantity.IsPositive() || !o.Price.IsPositive() {
		return ErrInvalidOrder
	}
	if o.Asset == "" {
		return fmt.Errorf("%w: asset is required", ErrInvalidOrder)
	}
	if o.Side != models.SideBuy && o.Side != models.SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	return nil
}
