package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesense/internal/models"
)

var (
	day1 = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC)
)

func newTestAccount(id uint64, balance string, kind, status string) *models.Account {
	a := models.NewAccount(1, d(balance), kind, status)
	a.ID = id
	return a
}

func newTestEngine(repo *stubLedger, clock *time.Time) *Engine {
	return &Engine{
		Repo:  repo,
		Rules: DefaultRules(),
		Now:   func() time.Time { return *clock },
	}
}

func order(accountID uint64, asset, side, qty, price string) Order {
	return Order{AccountID: accountID, Asset: asset, Side: side, Quantity: d(qty), Price: d(price)}
}

func assertEquityInvariant(t *testing.T, repo *stubLedger, accountID uint64) {
	t.Helper()
	a := repo.account(accountID)
	positions, _ := repo.ListPositionsTx(context.Background(), nil, accountID)
	want := equityOf(a.Balance, positions)
	if !a.Equity.Equal(want) {
		t.Fatalf("equity=%s want=%s (balance=%s)", a.Equity, want, a.Balance)
	}
}

func TestProcessTrade_BuyOpensLong(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)

	res, err := e.ProcessTrade(context.Background(), order(1, "BTC-USD", "buy", "2", "100"))
	if err != nil {
		t.Fatalf("ProcessTrade err=%v", err)
	}
	if !res.Profit.IsZero() {
		t.Fatalf("profit=%s want=0", res.Profit)
	}
	if res.TradeID == 0 {
		t.Fatalf("trade_id=0 want non-zero")
	}
	a := repo.account(1)
	if !a.Balance.Equal(d("9800")) {
		t.Fatalf("balance=%s want=9800", a.Balance)
	}
	if !res.Equity.Equal(d("10000")) {
		t.Fatalf("equity=%s want=10000", res.Equity)
	}
	p := repo.position(1, "BTC-USD")
	if p == nil || !p.Quantity.Equal(d("2")) || !p.AvgEntryPrice.Equal(d("100")) {
		t.Fatalf("position=%+v want qty=2 avg=100", p)
	}
	if len(repo.trades) != 1 || repo.trades[0].ExitPrice != nil || repo.trades[0].Status != models.TradeStatusClosed {
		t.Fatalf("trades=%+v want one closed buy without exit price", repo.trades)
	}
	assertEquityInvariant(t, repo, 1)
}

func TestProcessTrade_BuyMergesWeightedAverage(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "ETH-USD", "buy", "1", "100")); err != nil {
		t.Fatalf("first buy err=%v", err)
	}
	if _, err := e.ProcessTrade(ctx, order(1, "ETH-USD", "buy", "3", "200")); err != nil {
		t.Fatalf("second buy err=%v", err)
	}
	p := repo.position(1, "ETH-USD")
	if p == nil || !p.Quantity.Equal(d("4")) || !p.AvgEntryPrice.Equal(d("175")) {
		t.Fatalf("position=%+v want qty=4 avg=175", p)
	}
	assertEquityInvariant(t, repo, 1)
}

func TestProcessTrade_SellClosesLong(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "5", "100")); err != nil {
		t.Fatalf("buy err=%v", err)
	}
	res, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "sell", "5", "110"))
	if err != nil {
		t.Fatalf("sell err=%v", err)
	}
	if !res.Profit.Equal(d("50")) {
		t.Fatalf("profit=%s want=50", res.Profit)
	}
	if p := repo.position(1, "BTC-USD"); p != nil {
		t.Fatalf("position=%+v want closed", p)
	}
	a := repo.account(1)
	if !a.Balance.Equal(d("10050")) || !a.Equity.Equal(d("10050")) {
		t.Fatalf("balance=%s equity=%s want=10050", a.Balance, a.Equity)
	}
	last := repo.trades[len(repo.trades)-1]
	if last.ExitPrice == nil || !last.ExitPrice.Equal(d("110")) {
		t.Fatalf("exit_price=%v want=110", last.ExitPrice)
	}
}

func TestProcessTrade_OversizedSellDropsExcess(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "2", "100")); err != nil {
		t.Fatalf("buy err=%v", err)
	}
	res, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "sell", "5", "100"))
	if err != nil {
		t.Fatalf("sell err=%v", err)
	}
	if !res.Profit.IsZero() {
		t.Fatalf("profit=%s want=0", res.Profit)
	}
	if p := repo.position(1, "BTC-USD"); p != nil {
		t.Fatalf("position=%+v want none, excess must not open a short", p)
	}
	if a := repo.account(1); !a.Balance.Equal(d("10000")) {
		t.Fatalf("balance=%s want=10000 (only 2 units credited)", a.Balance)
	}
}

func TestProcessTrade_SellWithoutLongOpensShort(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "1000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	// No margin check on shorts even when notional exceeds balance.
	if _, err := e.ProcessTrade(ctx, order(1, "EURUSD=X", "sell", "10", "100")); err != nil {
		t.Fatalf("first sell err=%v", err)
	}
	if _, err := e.ProcessTrade(ctx, order(1, "EURUSD=X", "sell", "30", "120")); err != nil {
		t.Fatalf("second sell err=%v", err)
	}
	p := repo.position(1, "EURUSD=X")
	if p == nil || !p.Quantity.Equal(d("-40")) || !p.AvgEntryPrice.Equal(d("115")) {
		t.Fatalf("position=%+v want qty=-40 avg=115", p)
	}
	a := repo.account(1)
	if !a.Balance.Equal(d("5600")) {
		t.Fatalf("balance=%s want=5600", a.Balance)
	}
	if !a.Equity.Equal(d("1000")) {
		t.Fatalf("equity=%s want=1000", a.Equity)
	}
}

func TestProcessTrade_BuyCoversShortThenOpensLong(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", models.ChallengeTypeDemo, models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "sell", "2", "100")); err != nil {
		t.Fatalf("short err=%v", err)
	}
	res, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "5", "90"))
	if err != nil {
		t.Fatalf("cover err=%v", err)
	}
	if !res.Profit.Equal(d("20")) {
		t.Fatalf("profit=%s want=20", res.Profit)
	}
	p := repo.position(1, "BTC-USD")
	if p == nil || !p.Quantity.Equal(d("3")) || !p.AvgEntryPrice.Equal(d("90")) {
		t.Fatalf("position=%+v want qty=3 avg=90", p)
	}
	a := repo.account(1)
	// 10000 + 200 - 2*90 - 3*90
	if !a.Balance.Equal(d("9750")) {
		t.Fatalf("balance=%s want=9750", a.Balance)
	}
	assertEquityInvariant(t, repo, 1)
}

func TestProcessTrade_PartialCoverKeepsShort(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "sell", "4", "100")); err != nil {
		t.Fatalf("short err=%v", err)
	}
	res, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "1", "110"))
	if err != nil {
		t.Fatalf("cover err=%v", err)
	}
	if !res.Profit.Equal(d("-10")) {
		t.Fatalf("profit=%s want=-10", res.Profit)
	}
	p := repo.position(1, "BTC-USD")
	if p == nil || !p.Quantity.Equal(d("-3")) || !p.AvgEntryPrice.Equal(d("100")) {
		t.Fatalf("position=%+v want qty=-3 avg=100", p)
	}
	assertEquityInvariant(t, repo, 1)
}

func TestProcessTrade_CoverSkipsBalanceCheck(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "100", models.ChallengeTypeDemo, models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "sell", "1", "100")); err != nil {
		t.Fatalf("short err=%v", err)
	}
	// Balance is 200, covering at 500 costs more than that and is still allowed.
	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "1", "500")); err != nil {
		t.Fatalf("cover err=%v want nil", err)
	}
	if a := repo.account(1); !a.Balance.Equal(d("-300")) {
		t.Fatalf("balance=%s want=-300", a.Balance)
	}
}

func TestProcessTrade_Preconditions(t *testing.T) {
	clock := day1
	repo := newStubLedger(
		newTestAccount(1, "10000", "starter", models.AccountStatusActive),
		newTestAccount(2, "10000", "starter", models.AccountStatusFailed),
		newTestAccount(3, "10000", "starter", models.AccountStatusPending),
		newTestAccount(4, "10000", "starter", models.AccountStatusFunded),
	)
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	cases := []struct {
		name string
		o    Order
		want error
	}{
		{"missing account", order(99, "BTC-USD", "buy", "1", "1"), ErrAccountNotFound},
		{"failed account", order(2, "BTC-USD", "buy", "1", "1"), ErrAccountNotTradable},
		{"pending account", order(3, "BTC-USD", "buy", "1", "1"), ErrAccountNotTradable},
		{"not tradable wins over invalid quantity", order(2, "BTC-USD", "buy", "0", "1"), ErrAccountNotTradable},
		{"zero quantity", order(1, "BTC-USD", "buy", "0", "1"), ErrInvalidOrder},
		{"negative price", order(1, "BTC-USD", "sell", "1", "-5"), ErrInvalidOrder},
		{"unknown side", order(1, "BTC-USD", "hold", "1", "1"), ErrInvalidOrder},
		{"insufficient balance", order(1, "BTC-USD", "buy", "101", "100"), ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ProcessTrade(ctx, tc.o)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want=%v", err, tc.want)
			}
			if !IsBusinessError(err) {
				t.Fatalf("IsBusinessError(%v)=false want=true", err)
			}
		})
	}
	if len(repo.trades) != 0 {
		t.Fatalf("trades=%d want=0 after rejected orders", len(repo.trades))
	}
	if _, err := e.ProcessTrade(ctx, order(4, "BTC-USD", "buy", "1", "1")); err != nil {
		t.Fatalf("funded account err=%v want nil", err)
	}
}

func TestProcessTrade_DemoReactivated(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", models.ChallengeTypeDemo, models.AccountStatusFailed))
	e := newTestEngine(repo, &clock)

	res, err := e.ProcessTrade(context.Background(), order(1, "BTC-USD", "buy", "1", "10"))
	if err != nil {
		t.Fatalf("ProcessTrade err=%v", err)
	}
	if res.Status != models.AccountStatusActive || repo.account(1).Status != models.AccountStatusActive {
		t.Fatalf("status=%s want=active", res.Status)
	}
}

func TestProcessTrade_RejectedOrderLeavesDemoStatus(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", models.ChallengeTypeDemo, models.AccountStatusFailed))
	e := newTestEngine(repo, &clock)

	_, err := e.ProcessTrade(context.Background(), order(1, "BTC-USD", "buy", "0", "10"))
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("err=%v want=%v", err, ErrInvalidOrder)
	}
	if got := repo.account(1).Status; got != models.AccountStatusFailed {
		t.Fatalf("status=%s want=failed (rolled back)", got)
	}
}

func TestProcessTrade_DayRolloverResetsDailyStart(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "sell", "10", "100")); err != nil {
		t.Fatalf("short err=%v", err)
	}
	// Covering at 130 loses 300 on day 1; the daily anchor is still the initial 10000.
	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "10", "130")); err != nil {
		t.Fatalf("cover err=%v", err)
	}
	a := repo.account(1)
	if !a.Equity.Equal(d("9700")) || !a.DailyStartingEquity.Equal(d("10000")) {
		t.Fatalf("equity=%s daily_start=%s want=9700/10000", a.Equity, a.DailyStartingEquity)
	}

	clock = day2
	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "1", "10")); err != nil {
		t.Fatalf("day2 buy err=%v", err)
	}
	a = repo.account(1)
	if !a.DailyStartingEquity.Equal(d("9700")) {
		t.Fatalf("daily_start=%s want=9700 (pre-trade equity)", a.DailyStartingEquity)
	}

	// A 490 loss on day 2 is 5.05% of the new 9700 anchor. Total drawdown stays at 790,
	// under the 1000 total-loss limit, so only the daily rule can fail the account.
	if _, err := e.ProcessTrade(ctx, order(1, "ETH-USD", "sell", "49", "100")); err != nil {
		t.Fatalf("day2 short err=%v", err)
	}
	if got := repo.account(1).Status; got != models.AccountStatusActive {
		t.Fatalf("status=%s want=active before the loss is realized", got)
	}
	res, err := e.ProcessTrade(ctx, order(1, "ETH-USD", "buy", "49", "110"))
	if err != nil {
		t.Fatalf("day2 cover err=%v", err)
	}
	a = repo.account(1)
	if !a.Equity.Equal(d("9210")) {
		t.Fatalf("equity=%s want=9210", a.Equity)
	}
	if !a.DailyStartingEquity.Equal(d("9700")) {
		t.Fatalf("daily_start=%s want=9700 (same day)", a.DailyStartingEquity)
	}
	if res.Status != models.AccountStatusFailed || a.Status != models.AccountStatusFailed {
		t.Fatalf("status=%s/%s want=failed by daily loss", res.Status, a.Status)
	}
}

func TestProcessTrade_FirstTradeKeepsDailyStart(t *testing.T) {
	clock := day2
	acct := newTestAccount(1, "10000", "starter", models.AccountStatusActive)
	acct.DailyStartingEquity = d("12000")
	repo := newStubLedger(acct)
	e := newTestEngine(repo, &clock)
	e.Rules = Rules{MaxTotalLossPct: d("50"), MaxDailyLossPct: d("50"), ProfitTargetPct: d("50")}

	if _, err := e.ProcessTrade(context.Background(), order(1, "BTC-USD", "buy", "1", "10")); err != nil {
		t.Fatalf("ProcessTrade err=%v", err)
	}
	if got := repo.account(1).DailyStartingEquity; !got.Equal(d("12000")) {
		t.Fatalf("daily_start=%s want=12000", got)
	}
}

func TestProcessTrade_LossFailsAccount(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	e := newTestEngine(repo, &clock)
	ctx := context.Background()

	if _, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "10", "100")); err != nil {
		t.Fatalf("buy err=%v", err)
	}
	res, err := e.ProcessTrade(ctx, order(1, "BTC-USD", "sell", "10", "49"))
	if err != nil {
		t.Fatalf("sell err=%v", err)
	}
	if res.Status != models.AccountStatusFailed {
		t.Fatalf("status=%s want=failed (equity %s)", res.Status, res.Equity)
	}
	_, err = e.ProcessTrade(ctx, order(1, "BTC-USD", "buy", "1", "1"))
	if !errors.Is(err, ErrAccountNotTradable) {
		t.Fatalf("err=%v want=%v", err, ErrAccountNotTradable)
	}
}

func TestProcessTrade_StoreFailureRollsBack(t *testing.T) {
	clock := day1
	repo := newStubLedger(newTestAccount(1, "10000", "starter", models.AccountStatusActive))
	repo.failSaveAccount = true
	e := newTestEngine(repo, &clock)

	_, err := e.ProcessTrade(context.Background(), order(1, "BTC-USD", "buy", "1", "100"))
	if err == nil || IsBusinessError(err) {
		t.Fatalf("err=%v want store error", err)
	}
	if len(repo.trades) != 0 || repo.position(1, "BTC-USD") != nil {
		t.Fatalf("trades=%d position=%v want nothing persisted", len(repo.trades), repo.position(1, "BTC-USD"))
	}
}

func TestEvaluateAllActive(t *testing.T) {
	loser := newTestAccount(1, "10000", "starter", models.AccountStatusActive)
	loser.Equity = d("8990")
	winner := newTestAccount(2, "10000", "pro", models.AccountStatusActive)
	winner.Equity = d("11000")
	flat := newTestAccount(3, "10000", "pro", models.AccountStatusActive)
	demo := newTestAccount(4, "10000", models.ChallengeTypeDemo, models.AccountStatusActive)
	demo.Equity = d("10")
	pending := newTestAccount(5, "10000", "elite", models.AccountStatusPending)
	pending.Equity = d("10")

	repo := newStubLedger(loser, winner, flat, demo, pending)
	clock := day1
	e := newTestEngine(repo, &clock)
	e.Workers = 2

	summary, err := e.EvaluateAllActive(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAllActive err=%v", err)
	}
	if summary.Evaluated != 4 || summary.Failed != 1 || summary.Funded != 1 {
		t.Fatalf("summary=%+v want evaluated=4 failed=1 funded=1", summary)
	}
	want := map[uint64]string{
		1: models.AccountStatusFailed,
		2: models.AccountStatusFunded,
		3: models.AccountStatusActive,
		4: models.AccountStatusActive,
		5: models.AccountStatusPending,
	}
	for id, status := range want {
		if got := repo.account(id).Status; got != status {
			t.Fatalf("account %d status=%s want=%s", id, got, status)
		}
	}
}

func TestEvaluateAccount_NotFound(t *testing.T) {
	clock := day1
	e := newTestEngine(newStubLedger(), &clock)
	if _, err := e.EvaluateAccount(context.Background(), 7); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err=%v want=%v", err, ErrAccountNotFound)
	}
}

func TestExecuteDoesNotMutateInput(t *testing.T) {
	pos := &models.Position{ID: 9, AccountID: 1, Asset: "BTC-USD", Quantity: d("2"), AvgEntryPrice: d("100")}
	f, err := execute(1, d("0"), pos, order(1, "BTC-USD", "sell", "1", "120").normalized())
	if err != nil {
		t.Fatalf("execute err=%v", err)
	}
	if !pos.Quantity.Equal(d("2")) {
		t.Fatalf("input quantity=%s want=2", pos.Quantity)
	}
	if f.Position == nil || !f.Position.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("fill=%+v want remaining qty=1", f)
	}
}
