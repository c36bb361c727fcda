package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

const TradeStatusClosed = "closed"

// Trade is an immutable record of one processed order.
type Trade struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID uint64 `gorm:"not null;index:ix_trades_account_ts,priority:1"`
	Asset     string `gorm:"type:varchar(20);not null"`
	Side      string `gorm:"type:varchar(10);not null"`

	EntryPrice decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	ExitPrice  *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Quantity   decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	TakeProfit *decimal.Decimal `gorm:"type:numeric(30,10)"`
	StopLoss   *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Profit     decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`

	Status    string    `gorm:"type:varchar(20);not null;default:'closed'"`
	Timestamp time.Time `gorm:"type:timestamptz;not null;index:ix_trades_account_ts,priority:2"`
}

func (Trade) TableName() string {
	return "trades"
}
