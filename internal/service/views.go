package service

import (
	"time"

	"github.com/shopspring/decimal"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

type AccountView struct {
	ID                  uint64          `json:"id"`
	UserID              uint64          `json:"user_id"`
	Balance             decimal.Decimal `json:"balance"`
	Equity              decimal.Decimal `json:"equity"`
	InitialBalance      decimal.Decimal `json:"initial_balance"`
	DailyStartingEquity decimal.Decimal `json:"daily_starting_equity"`
	Status              string          `json:"status"`
	ChallengeType       string          `json:"challenge_type"`
	CreatedAt           time.Time       `json:"created_at"`
	Profit              decimal.Decimal `json:"profit"`
	WithdrawMinProfit   decimal.Decimal `json:"withdraw_min_profit"`
	WithdrawAllowed     bool            `json:"withdraw_allowed"`
}

type PositionView struct {
	ID            uint64          `json:"id"`
	AccountID     uint64          `json:"account_id"`
	Asset         string          `json:"asset"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type TradeView struct {
	ID         uint64           `json:"id"`
	AccountID  uint64           `json:"account_id"`
	Asset      string           `json:"asset"`
	Side       string           `json:"side"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	ExitPrice  *decimal.Decimal `json:"exit_price"`
	Quantity   decimal.Decimal  `json:"quantity"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	Profit     decimal.Decimal  `json:"profit"`
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
}

type Portfolio struct {
	Account   *AccountView   `json:"account"`
	Positions []PositionView `json:"positions"`
	Trades    []TradeView    `json:"trades"`
}

type LeaderboardEntry struct {
	Rank      int             `json:"rank"`
	AccountID uint64          `json:"account_id"`
	UserName  string          `json:"user_name"`
	ProfitPct decimal.Decimal `json:"profit_pct"`
	Status    string          `json:"status"`
	Trades    int64           `json:"trades"`
}

type WithdrawalView struct {
	ID          uint64          `json:"id"`
	AccountID   uint64          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at"`
}

type WithdrawalReceipt struct {
	WithdrawalID    uint64          `json:"withdrawal_id"`
	AccountID       uint64          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	AvailableProfit decimal.Decimal `json:"available_profit"`
	MinProfit       decimal.Decimal `json:"min_profit"`
}

type Activation struct {
	AccountID       uint64 `json:"account_id"`
	UserChallengeID uint64 `json:"user_challenge_id"`
	ChallengeName   string `json:"challenge_name"`
}

func positionView(p models.Position) PositionView {
	return PositionView{
		ID:            p.ID,
		AccountID:     p.AccountID,
		Asset:         p.Asset,
		Quantity:      p.Quantity,
		AvgEntryPrice: p.AvgEntryPrice,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func tradeView(t models.Trade) TradeView {
	return TradeView{
		ID:         t.ID,
		AccountID:  t.AccountID,
		Asset:      t.Asset,
		Side:       t.Side,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		Quantity:   t.Quantity,
		TakeProfit: t.TakeProfit,
		StopLoss:   t.StopLoss,
		Profit:     t.Profit,
		Status:     t.Status,
		Timestamp:  t.Timestamp,
	}
}

func withdrawalView(w models.Withdrawal) WithdrawalView {
	return WithdrawalView{
		ID:          w.ID,
		AccountID:   w.AccountID,
		Amount:      w.Amount,
		Status:      w.Status,
		CreatedAt:   w.CreatedAt,
		ProcessedAt: w.ProcessedAt,
	}
}

type UserChallengeView struct {
	ID             uint64          `json:"id"`
	UserID         uint64          `json:"user_id"`
	ChallengeID    uint64          `json:"challenge_id"`
	AccountID      uint64          `json:"account_id"`
	ChallengeName  string          `json:"challenge_name"`
	PriceDH        decimal.Decimal `json:"price_dh"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	TransactionID  string          `json:"transaction_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

type AccountOwner struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AccountDetails is the admin drill-down of one account.
type AccountDetails struct {
	Account   AccountView    `json:"account"`
	User      AccountOwner   `json:"user"`
	Positions []PositionView `json:"positions"`
	Trades    []TradeView    `json:"trades"`
}

func userChallengeView(r repository.UserChallengeRow) UserChallengeView {
	return UserChallengeView{
		ID:             r.ID,
		UserID:         r.UserID,
		ChallengeID:    r.ChallengeID,
		AccountID:      r.AccountID,
		ChallengeName:  r.ChallengeName,
		PriceDH:        r.PriceDH,
		InitialBalance: r.InitialBalance,
		Status:         r.Status,
		PaymentMethod:  r.PaymentMethod,
		TransactionID:  r.TransactionID,
		CreatedAt:      r.CreatedAt,
	}
}
