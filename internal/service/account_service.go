package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tradesense/internal/config"
	"tradesense/internal/models"
	"tradesense/internal/repository"
)

const detailTrades = 10

// AccountService covers the challenge catalog, account read models, withdrawals and
// admin account controls. Trade execution lives in the challenge engine.
type AccountService struct {
	Repo   repository.Repository
	Logger *zap.Logger

	WithdrawMinProfit decimal.Decimal
	LeaderboardSize   int

	Now func() time.Time
}

func NewAccountService(repo repository.Repository, cfg config.ChallengeConfig, logger *zap.Logger) *AccountService {
	return &AccountService{
		Repo:              repo,
		Logger:            logger,
		WithdrawMinProfit: decimal.NewFromFloat(cfg.WithdrawMinProfit),
		LeaderboardSize:   cfg.LeaderboardSize,
	}
}

func (s *AccountService) ListChallenges(ctx context.Context) ([]models.Challenge, error) {
	return s.Repo.ListChallenges(ctx)
}

type ActivateInput struct {
	UserID        uint64
	ChallengeID   uint64
	PaymentMethod string
	TransactionID string
}

// ActivateChallenge records a purchase and opens an active account funded with the
// tier's initial balance.
func (s *AccountService) ActivateChallenge(ctx context.Context, in ActivateInput) (Activation, error) {
	tier, err := s.Repo.GetChallengeByID(ctx, in.ChallengeID)
	if err != nil {
		return Activation{}, fmt.Errorf("load challenge: %w", err)
	}
	if tier == nil {
		return Activation{}, notFound("Challenge not found")
	}
	user, err := s.Repo.GetUserByID(ctx, in.UserID)
	if err != nil {
		return Activation{}, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return Activation{}, notFound("User not found")
	}
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = "manual"
	}

	var out Activation
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		acct := models.NewAccount(user.ID, tier.InitialBalance, tier.Name, models.AccountStatusActive)
		if err := s.Repo.CreateAccountTx(ctx, tx, acct); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		uc := &models.UserChallenge{
			UserID:        user.ID,
			ChallengeID:   tier.ID,
			AccountID:     acct.ID,
			Status:        models.AccountStatusActive,
			PaymentMethod: method,
			TransactionID: strings.TrimSpace(in.TransactionID),
		}
		if err := s.Repo.InsertUserChallengeTx(ctx, tx, uc); err != nil {
			return fmt.Errorf("record purchase: %w", err)
		}
		out = Activation{AccountID: acct.ID, UserChallengeID: uc.ID, ChallengeName: tier.Name}
		return nil
	})
	if err != nil {
		return Activation{}, err
	}
	if s.Logger != nil {
		s.Logger.Info("challenge activated",
			zap.Uint64("user_id", user.ID),
			zap.Uint64("account_id", out.AccountID),
			zap.String("challenge", tier.Name),
			zap.String("payment_method", method),
		)
	}
	return out, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, userID uint64) ([]AccountView, error) {
	items, err := s.Repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]AccountView, 0, len(items))
	for _, a := range items {
		out = append(out, s.accountView(a))
	}
	return out, nil
}

func (s *AccountService) Account(ctx context.Context, accountID uint64) (AccountView, error) {
	acct, err := s.Repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return AccountView{}, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return AccountView{}, notFound("Account not found")
	}
	return s.accountView(*acct), nil
}

// UserChallenges lists the user's challenge purchases, newest first.
func (s *AccountService) UserChallenges(ctx context.Context, userID uint64) ([]UserChallengeView, error) {
	rows, err := s.Repo.ListUserChallenges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user challenges: %w", err)
	}
	out := make([]UserChallengeView, 0, len(rows))
	for _, r := range rows {
		out = append(out, userChallengeView(r))
	}
	return out, nil
}

// CurrentUserChallenge is the most recent purchase, or nil when the user has none.
func (s *AccountService) CurrentUserChallenge(ctx context.Context, userID uint64) (*UserChallengeView, error) {
	items, err := s.UserChallenges(ctx, userID)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// Portfolio returns the user's first account with its open positions and trade history.
func (s *AccountService) Portfolio(ctx context.Context, userID uint64) (Portfolio, error) {
	out := Portfolio{Positions: []PositionView{}, Trades: []TradeView{}}
	accounts, err := s.Repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		return out, err
	}
	if len(accounts) == 0 {
		return out, nil
	}
	acct := accounts[0]
	view := s.accountView(acct)
	out.Account = &view

	positions, err := s.Repo.ListPositionsByAccount(ctx, acct.ID)
	if err != nil {
		return out, fmt.Errorf("list positions: %w", err)
	}
	for _, p := range positions {
		out.Positions = append(out.Positions, positionView(p))
	}
	trades, err := s.Repo.ListTrades(ctx, repository.ListTradesParams{AccountID: acct.ID, Limit: 500})
	if err != nil {
		return out, fmt.Errorf("list trades: %w", err)
	}
	for _, t := range trades {
		out.Trades = append(out.Trades, tradeView(t))
	}
	return out, nil
}

func (s *AccountService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	size := s.LeaderboardSize
	if size <= 0 {
		size = 10
	}
	rows, err := s.Repo.Leaderboard(ctx, size)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		pct := decimal.Zero
		if r.InitialBalance.IsPositive() {
			pct = r.Equity.Sub(r.InitialBalance).Div(r.InitialBalance).Mul(decimal.NewFromInt(100)).Round(2)
		}
		out = append(out, LeaderboardEntry{
			Rank:      i + 1,
			AccountID: r.AccountID,
			UserName:  r.Username,
			ProfitPct: pct,
			Status:    r.Status,
			Trades:    r.Trades,
		})
	}
	return out, nil
}

// RequestWithdrawal files a pending payout against a funded account's profit.
func (s *AccountService) RequestWithdrawal(ctx context.Context, accountID uint64, amount decimal.Decimal) (WithdrawalReceipt, error) {
	acct, err := s.Repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return WithdrawalReceipt{}, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return WithdrawalReceipt{}, notFound("Account not found")
	}
	if acct.Status != models.AccountStatusFunded {
		return WithdrawalReceipt{}, forbidden("Withdrawals are only available for funded accounts")
	}
	profit := acct.Profit()
	threshold := s.withdrawMinProfit()
	if profit.LessThan(threshold) {
		return WithdrawalReceipt{}, forbidden("Profit threshold not reached")
	}
	if !amount.IsPositive() {
		return WithdrawalReceipt{}, invalid("Amount must be greater than 0")
	}
	if amount.GreaterThan(profit) {
		return WithdrawalReceipt{}, invalid("Amount exceeds available profit")
	}
	w := &models.Withdrawal{AccountID: acct.ID, Amount: amount, Status: models.WithdrawalPending}
	if err := s.Repo.InsertWithdrawal(ctx, w); err != nil {
		return WithdrawalReceipt{}, fmt.Errorf("insert withdrawal: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("withdrawal requested",
			zap.Uint64("account_id", acct.ID),
			zap.Uint64("withdrawal_id", w.ID),
			zap.String("amount", amount.String()),
		)
	}
	return WithdrawalReceipt{
		WithdrawalID:    w.ID,
		AccountID:       acct.ID,
		Amount:          amount,
		AvailableProfit: profit,
		MinProfit:       threshold,
	}, nil
}

// UpdateWithdrawalStatus moves a withdrawal to a new status. Any status other than
// pending stamps the processing time.
func (s *AccountService) UpdateWithdrawalStatus(ctx context.Context, actorID, withdrawalID uint64, status string) (WithdrawalView, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidWithdrawalStatus(status) {
		return WithdrawalView{}, invalid("Invalid withdrawal status")
	}
	w, err := s.Repo.GetWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return WithdrawalView{}, fmt.Errorf("load withdrawal: %w", err)
	}
	if w == nil {
		return WithdrawalView{}, notFound("Withdrawal not found")
	}
	from := w.Status
	var processedAt *time.Time
	if status != models.WithdrawalPending {
		now := s.now()
		processedAt = &now
	}
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpdateWithdrawalStatusTx(ctx, tx, w.ID, status, processedAt); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		return s.audit(ctx, tx, actorID, "withdrawal_update", map[string]any{
			"withdrawal_id": w.ID,
			"from":          from,
			"to":            status,
		})
	})
	if err != nil {
		return WithdrawalView{}, err
	}
	w.Status = status
	if processedAt != nil {
		w.ProcessedAt = processedAt
	}
	return withdrawalView(*w), nil
}

// SetAccountStatus is the admin override for an account's lifecycle status.
func (s *AccountService) SetAccountStatus(ctx context.Context, actorID, accountID uint64, status string) (AccountView, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidAccountStatus(status) {
		return AccountView{}, invalid("Invalid account status")
	}
	var updated models.Account
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		acct, err := s.Repo.LockAccountTx(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if acct == nil {
			return notFound("Account not found")
		}
		from := acct.Status
		if err := s.Repo.UpdateAccountStatusTx(ctx, tx, acct.ID, status); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		acct.Status = status
		updated = *acct
		return s.audit(ctx, tx, actorID, "account_status_update", map[string]any{
			"account_id": acct.ID,
			"from":       from,
			"to":         status,
		})
	})
	if err != nil {
		return AccountView{}, err
	}
	if s.Logger != nil {
		s.Logger.Info("account status set by admin",
			zap.Uint64("actor_id", actorID),
			zap.Uint64("account_id", accountID),
			zap.String("status", status),
		)
	}
	return s.accountView(updated), nil
}

func (s *AccountService) AdminAccounts(ctx context.Context, params repository.ListAccountsParams) ([]AccountView, int64, error) {
	items, err := s.Repo.ListAccounts(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountAccounts(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AccountView, 0, len(items))
	for _, a := range items {
		out = append(out, s.accountView(a))
	}
	return out, total, nil
}

// AccountDetails returns an account with its owner, open positions and the most
// recent trades.
func (s *AccountService) AccountDetails(ctx context.Context, accountID uint64) (AccountDetails, error) {
	acct, err := s.Repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return AccountDetails{}, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return AccountDetails{}, notFound("Account not found")
	}
	out := AccountDetails{
		Account:   s.accountView(*acct),
		User:      AccountOwner{Username: "Unknown"},
		Positions: []PositionView{},
		Trades:    []TradeView{},
	}
	user, err := s.Repo.GetUserByID(ctx, acct.UserID)
	if err != nil {
		return AccountDetails{}, fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		out.User = AccountOwner{ID: user.ID, Username: user.Username, Email: user.Email}
	}
	positions, err := s.Repo.ListPositionsByAccount(ctx, acct.ID)
	if err != nil {
		return AccountDetails{}, fmt.Errorf("list positions: %w", err)
	}
	for _, p := range positions {
		out.Positions = append(out.Positions, positionView(p))
	}
	trades, err := s.Repo.ListTrades(ctx, repository.ListTradesParams{AccountID: acct.ID, Limit: detailTrades})
	if err != nil {
		return AccountDetails{}, fmt.Errorf("list trades: %w", err)
	}
	for _, t := range trades {
		out.Trades = append(out.Trades, tradeView(t))
	}
	return out, nil
}

func (s *AccountService) AdminWithdrawals(ctx context.Context, params repository.ListWithdrawalsParams) ([]WithdrawalView, int64, error) {
	items, err := s.Repo.ListWithdrawals(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountWithdrawals(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	out := make([]WithdrawalView, 0, len(items))
	for _, w := range items {
		out = append(out, withdrawalView(w))
	}
	return out, total, nil
}

func (s *AccountService) AuditLog(ctx context.Context, limit, offset int) ([]models.AdminActionLog, error) {
	return s.Repo.ListAdminActionLogs(ctx, limit, offset)
}

func (s *AccountService) audit(ctx context.Context, tx *gorm.DB, actorID uint64, action string, details map[string]any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	entry := &models.AdminActionLog{
		ActorID: actorID,
		Action:  action,
		Details: datatypes.JSON(raw),
	}
	if err := s.Repo.InsertAdminActionLogTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func (s *AccountService) accountView(a models.Account) AccountView {
	profit := a.Profit()
	threshold := s.withdrawMinProfit()
	return AccountView{
		ID:                  a.ID,
		UserID:              a.UserID,
		Balance:             a.Balance,
		Equity:              a.Equity,
		InitialBalance:      a.InitialBalance,
		DailyStartingEquity: a.DailyStartingEquity,
		Status:              a.Status,
		ChallengeType:       a.ChallengeType,
		CreatedAt:           a.CreatedAt,
		Profit:              profit,
		WithdrawMinProfit:   threshold,
		WithdrawAllowed:     a.Status == models.AccountStatusFunded && profit.GreaterThanOrEqual(threshold),
	}
}

func (s *AccountService) withdrawMinProfit() decimal.Decimal {
	if s.WithdrawMinProfit.IsPositive() {
		return s.WithdrawMinProfit
	}
	return decimal.NewFromInt(1000)
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
