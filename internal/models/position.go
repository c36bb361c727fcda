package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the open exposure of one account in one asset.
// Quantity is signed: positive is long, negative is short. Flat positions are deleted.
type Position struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID uint64 `gorm:"not null;uniqueIndex:ux_positions_account_asset"`
	Asset     string `gorm:"type:varchar(20);not null;uniqueIndex:ux_positions_account_asset"`

	Quantity      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgEntryPrice decimal.Decimal `gorm:"type:numeric(30,16);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}

// CostValue is the position valued at its average entry price.
func (p Position) CostValue() decimal.Decimal {
	return p.Quantity.Mul(p.AvgEntryPrice)
}

func (p Position) IsLong() bool  { return p.Quantity.IsPositive() }
func (p Position) IsShort() bool { return p.Quantity.IsNegative() }
