package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Challenge is a purchasable evaluation tier.
// The percentage fields are informational; account evaluation uses process-wide rules.
type Challenge struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	Name           string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	PriceDH        decimal.Decimal `gorm:"column:price_dh;type:numeric(20,2);not null"`
	InitialBalance decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	ProfitTargetPct decimal.Decimal `gorm:"type:numeric(10,4);not null;default:10"`
	MaxDailyLossPct decimal.Decimal `gorm:"type:numeric(10,4);not null;default:5"`
	MaxTotalLossPct decimal.Decimal `gorm:"type:numeric(10,4);not null;default:10"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// UserChallenge records a purchased (or manually granted) challenge.
type UserChallenge struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	UserID        uint64 `gorm:"not null;index"`
	ChallengeID   uint64 `gorm:"not null;index"`
	AccountID     uint64 `gorm:"index"`
	Status        string `gorm:"type:varchar(20);not null;default:'active'"`
	PaymentMethod string `gorm:"type:varchar(20);not null"`
	TransactionID string `gorm:"type:varchar(100)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (UserChallenge) TableName() string {
	return "user_challenges"
}
