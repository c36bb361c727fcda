package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
	WithdrawalPaid     = "paid"
)

type Withdrawal struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	AccountID   uint64          `gorm:"not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Status      string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt   time.Time       `gorm:"type:timestamptz;autoCreateTime;index"`
	ProcessedAt *time.Time      `gorm:"type:timestamptz"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

func ValidWithdrawalStatus(status string) bool {
	switch status {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected, WithdrawalPaid:
		return true
	}
	return false
}
