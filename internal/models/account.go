package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountStatusActive  = "active"
	AccountStatusFailed  = "failed"
	AccountStatusFunded  = "funded"
	AccountStatusPending = "pending"
)

const (
	ChallengeTypeDemo  = "demo"
	ChallengeTypeTrial = "trial"
)

type Account struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID uint64 `gorm:"not null;index"`

	Balance             decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Equity              decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	InitialBalance      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	DailyStartingEquity decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	Status        string `gorm:"type:varchar(20);not null;default:'active';index"`
	ChallengeType string `gorm:"type:varchar(50);index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}

// NewAccount returns an account whose balance, equity and both equity anchors start at principal.
func NewAccount(userID uint64, principal decimal.Decimal, challengeType, status string) *Account {
	return &Account{
		UserID:              userID,
		Balance:             principal,
		Equity:              principal,
		InitialBalance:      principal,
		DailyStartingEquity: principal,
		ChallengeType:       strings.ToLower(strings.TrimSpace(challengeType)),
		Status:              status,
	}
}

func (a Account) IsDemo() bool {
	return strings.EqualFold(a.ChallengeType, ChallengeTypeDemo)
}

// Profit is equity over the initial balance.
func (a Account) Profit() decimal.Decimal {
	return a.Equity.Sub(a.InitialBalance)
}

func ValidAccountStatus(status string) bool {
	switch status {
	case AccountStatusActive, AccountStatusFailed, AccountStatusFunded, AccountStatusPending:
		return true
	}
	return false
}
