package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func fundedAccount(id uint64, initial, equity string) models.Account {
	a := models.NewAccount(1, dec(initial), "pro", models.AccountStatusFunded)
	a.ID = id
	a.Equity = dec(equity)
	return *a
}

func TestActivateChallenge(t *testing.T) {
	repo := newStubRepo()
	repo.users[1] = models.User{ID: 1, Username: "sara"}
	repo.challenges[2] = models.Challenge{ID: 2, Name: "Pro", InitialBalance: dec("25000")}
	svc := &AccountService{Repo: repo}

	out, err := svc.ActivateChallenge(context.Background(), ActivateInput{UserID: 1, ChallengeID: 2, PaymentMethod: "PayPal", TransactionID: "tx-1"})
	require.NoError(t, err)

	acct := repo.accounts[out.AccountID]
	assert.Equal(t, models.AccountStatusActive, acct.Status)
	assert.Equal(t, "pro", acct.ChallengeType)
	assert.True(t, acct.Balance.Equal(dec("25000")))
	assert.True(t, acct.DailyStartingEquity.Equal(dec("25000")))
	require.Len(t, repo.userChallenges, 1)
	assert.Equal(t, out.AccountID, repo.userChallenges[0].AccountID)
	assert.Equal(t, "paypal", repo.userChallenges[0].PaymentMethod)
}

func TestActivateChallenge_NotFound(t *testing.T) {
	repo := newStubRepo()
	repo.challenges[2] = models.Challenge{ID: 2, Name: "Pro"}
	svc := &AccountService{Repo: repo}

	_, err := svc.ActivateChallenge(context.Background(), ActivateInput{UserID: 1, ChallengeID: 9})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Challenge not found")

	_, err = svc.ActivateChallenge(context.Background(), ActivateInput{UserID: 1, ChallengeID: 2})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "User not found")
	assert.Empty(t, repo.accounts)
}

func TestRequestWithdrawal(t *testing.T) {
	repo := newStubRepo()
	repo.accounts[1] = fundedAccount(1, "10000", "12000")
	active := fundedAccount(2, "10000", "12000")
	active.Status = models.AccountStatusActive
	repo.accounts[2] = active
	repo.accounts[3] = fundedAccount(3, "10000", "10500")
	svc := &AccountService{Repo: repo, WithdrawMinProfit: dec("1000")}
	ctx := context.Background()

	cases := []struct {
		name    string
		account uint64
		amount  string
		kind    error
		msg     string
	}{
		{"missing account", 99, "10", ErrNotFound, "Account not found"},
		{"not funded", 2, "10", ErrForbidden, "Withdrawals are only available for funded accounts"},
		{"below threshold", 3, "10", ErrForbidden, "Profit threshold not reached"},
		{"zero amount", 1, "0", ErrInvalid, "Amount must be greater than 0"},
		{"above profit", 1, "2000.01", ErrInvalid, "Amount exceeds available profit"},
	}
	for _, tc := range cases {
		_, err := svc.RequestWithdrawal(ctx, tc.account, dec(tc.amount))
		assert.ErrorIs(t, err, tc.kind, tc.name)
		assert.EqualError(t, err, tc.msg, tc.name)
	}

	receipt, err := svc.RequestWithdrawal(ctx, 1, dec("2000"))
	require.NoError(t, err)
	assert.True(t, receipt.AvailableProfit.Equal(dec("2000")))
	assert.Equal(t, models.WithdrawalPending, repo.withdrawals[receipt.WithdrawalID].Status)
}

func TestUpdateWithdrawalStatus(t *testing.T) {
	repo := newStubRepo()
	repo.withdrawals[5] = models.Withdrawal{ID: 5, AccountID: 1, Amount: dec("100"), Status: models.WithdrawalPending}
	svc := &AccountService{Repo: repo}
	ctx := context.Background()

	_, err := svc.UpdateWithdrawalStatus(ctx, 1, 5, "cancelled")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.UpdateWithdrawalStatus(ctx, 1, 6, "paid")
	assert.ErrorIs(t, err, ErrNotFound)

	view, err := svc.UpdateWithdrawalStatus(ctx, 1, 5, " Approved ")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, view.Status)
	require.NotNil(t, view.ProcessedAt)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, "withdrawal_update", repo.logs[0].Action)
	var details map[string]any
	require.NoError(t, json.Unmarshal(repo.logs[0].Details, &details))
	assert.Equal(t, "pending", details["from"])
	assert.Equal(t, "approved", details["to"])
}

func TestSetAccountStatus(t *testing.T) {
	repo := newStubRepo()
	repo.accounts[1] = fundedAccount(1, "10000", "9000")
	svc := &AccountService{Repo: repo}
	ctx := context.Background()

	_, err := svc.SetAccountStatus(ctx, 7, 1, "frozen")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.SetAccountStatus(ctx, 7, 2, "active")
	assert.ErrorIs(t, err, ErrNotFound)

	view, err := svc.SetAccountStatus(ctx, 7, 1, "ACTIVE")
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusActive, view.Status)
	assert.Equal(t, models.AccountStatusActive, repo.accounts[1].Status)
	require.Len(t, repo.logs, 1)
	assert.Equal(t, uint64(7), repo.logs[0].ActorID)
}

func TestPortfolio(t *testing.T) {
	repo := newStubRepo()
	svc := &AccountService{Repo: repo}
	ctx := context.Background()

	empty, err := svc.Portfolio(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, empty.Account)
	assert.NotNil(t, empty.Positions)

	repo.accounts[3] = fundedAccount(3, "10000", "11500")
	repo.accounts[4] = fundedAccount(4, "5000", "5000")
	repo.positions = []models.Position{{ID: 1, AccountID: 3, Asset: "BTC-USD", Quantity: dec("1"), AvgEntryPrice: dec("100")}}
	repo.trades = []models.Trade{{ID: 1, AccountID: 3, Side: models.SideBuy}, {ID: 2, AccountID: 4}}

	p, err := svc.Portfolio(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p.Account)
	assert.Equal(t, uint64(3), p.Account.ID)
	assert.True(t, p.Account.Profit.Equal(dec("1500")))
	assert.True(t, p.Account.WithdrawAllowed)
	assert.Len(t, p.Positions, 1)
	require.Len(t, p.Trades, 1)
	assert.Equal(t, models.SideBuy, p.Trades[0].Side)
}

func TestLeaderboard(t *testing.T) {
	repo := newStubRepo()
	repo.leaderboard = []repository.LeaderboardRow{
		{AccountID: 1, Username: "a", Equity: dec("11234.5"), InitialBalance: dec("10000"), Trades: 4},
		{AccountID: 2, Username: "b", Equity: dec("100"), InitialBalance: dec("0")},
	}
	svc := &AccountService{Repo: repo}

	rows, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.True(t, rows[0].ProfitPct.Equal(dec("12.35")), "pct=%s", rows[0].ProfitPct)
	assert.True(t, rows[1].ProfitPct.IsZero())
}

func TestUserChallenges(t *testing.T) {
	repo := newStubRepo()
	repo.users[1] = models.User{ID: 1, Username: "sara"}
	repo.challenges[1] = models.Challenge{ID: 1, Name: "Starter", PriceDH: dec("200"), InitialBalance: dec("5000")}
	repo.challenges[2] = models.Challenge{ID: 2, Name: "Pro", PriceDH: dec("500"), InitialBalance: dec("25000")}
	svc := &AccountService{Repo: repo}
	ctx := context.Background()

	current, err := svc.CurrentUserChallenge(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = svc.ActivateChallenge(ctx, ActivateInput{UserID: 1, ChallengeID: 1, PaymentMethod: "cmi"})
	require.NoError(t, err)
	second, err := svc.ActivateChallenge(ctx, ActivateInput{UserID: 1, ChallengeID: 2, PaymentMethod: "paypal", TransactionID: "tx-9"})
	require.NoError(t, err)

	items, err := svc.UserChallenges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Pro", items[0].ChallengeName)
	assert.Equal(t, "Starter", items[1].ChallengeName)

	current, err = svc.CurrentUserChallenge(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second.UserChallengeID, current.ID)
	assert.Equal(t, second.AccountID, current.AccountID)
	assert.Equal(t, "paypal", current.PaymentMethod)
	assert.Equal(t, "tx-9", current.TransactionID)
	assert.True(t, current.PriceDH.Equal(dec("500")))
	assert.True(t, current.InitialBalance.Equal(dec("25000")))

	others, err := svc.UserChallenges(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestAccountDetails(t *testing.T) {
	repo := newStubRepo()
	repo.users[1] = models.User{ID: 1, Username: "sara", Email: "sara@example.com"}
	repo.accounts[3] = fundedAccount(3, "10000", "11500")
	repo.positions = []models.Position{{ID: 1, AccountID: 3, Asset: "BTC-USD", Quantity: dec("-2"), AvgEntryPrice: dec("100")}}
	repo.trades = []models.Trade{{ID: 1, AccountID: 3, Asset: "BTC-USD", Side: models.SideSell}, {ID: 2, AccountID: 9}}
	svc := &AccountService{Repo: repo}
	ctx := context.Background()

	out, err := svc.AccountDetails(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), out.Account.ID)
	assert.True(t, out.Account.Profit.Equal(dec("1500")))
	assert.Equal(t, AccountOwner{ID: 1, Username: "sara", Email: "sara@example.com"}, out.User)
	require.Len(t, out.Positions, 1)
	assert.True(t, out.Positions[0].Quantity.Equal(dec("-2")))
	require.Len(t, out.Trades, 1)
	assert.Equal(t, uint64(1), out.Trades[0].ID)

	orphan := fundedAccount(4, "5000", "5000")
	orphan.UserID = 77
	repo.accounts[4] = orphan
	out, err = svc.AccountDetails(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", out.User.Username)
	assert.NotNil(t, out.Trades)

	_, err = svc.AccountDetails(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
