package challenge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

// Engine processes trades against challenge accounts and enforces the evaluation rules.
// Every mutation runs in one store transaction holding the account row lock.
type Engine struct {
	Repo    repository.LedgerRepository
	Rules   Rules
	Logger  *zap.Logger
	Workers int

	// Now is the processing clock; nil means time.Now.
	Now func() time.Time
}

// Transition is the outcome of evaluating one account.
type Transition struct {
	AccountID uint64
	From      string
	To        string
}

func (t Transition) Changed() bool { return t.From != t.To }

type EvaluationSummary struct {
	Evaluated int
	Failed    int
	Funded    int
	Errors    int
}

var errNotConfigured = errors.New("challenge engine not configured")

func (e *Engine) ProcessTrade(ctx context.Context, o Order) (TradeResult, error) {
	if e == nil || e.Repo == nil {
		return TradeResult{}, errNotConfigured
	}
	o = o.normalized()
	now := e.now()

	var result TradeResult
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		acct, err := e.Repo.LockAccountTx(ctx, tx, o.AccountID)
		if err != nil {
			return fmt.Errorf("load account %d: %w", o.AccountID, err)
		}
		if acct == nil {
			return ErrAccountNotFound
		}
		if err := e.ensureTradable(acct); err != nil {
			return err
		}
		if err := o.validate(); err != nil {
			return err
		}

		last, err := e.Repo.LatestTradeTx(ctx, tx, acct.ID)
		if err != nil {
			return fmt.Errorf("load latest trade: %w", err)
		}
		if last != nil && !sameUTCDay(last.Timestamp, now) {
			acct.DailyStartingEquity = acct.Equity
		}

		pos, err := e.Repo.GetPositionTx(ctx, tx, acct.ID, o.Asset)
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}
		f, err := execute(acct.ID, acct.Balance, pos, o)
		if err != nil {
			return err
		}
		if f.Remove && pos != nil {
			if err := e.Repo.DeletePositionTx(ctx, tx, pos.ID); err != nil {
				return fmt.Errorf("delete position: %w", err)
			}
			if f.Position != nil && f.Position.ID == pos.ID {
				f.Position.ID = 0
			}
		}
		if f.Position != nil {
			if err := e.Repo.SavePositionTx(ctx, tx, f.Position); err != nil {
				return fmt.Errorf("save position: %w", err)
			}
		}

		trade := &models.Trade{
			AccountID:  acct.ID,
			Asset:      o.Asset,
			Side:       o.Side,
			EntryPrice: o.Price,
			Quantity:   o.Quantity,
			TakeProfit: o.TakeProfit,
			StopLoss:   o.StopLoss,
			Profit:     f.Profit,
			Status:     models.TradeStatusClosed,
			Timestamp:  now,
		}
		if o.Side == models.SideSell {
			exit := o.Price
			trade.ExitPrice = &exit
		}
		if err := e.Repo.InsertTradeTx(ctx, tx, trade); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}

		positions, err := e.Repo.ListPositionsTx(ctx, tx, acct.ID)
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		acct.Balance = f.Balance
		acct.Equity = equityOf(acct.Balance, positions)

		from := acct.Status
		if e.rules().Evaluate(acct) {
			e.logTransition(Transition{AccountID: acct.ID, From: from, To: acct.Status}, "trade")
		}
		if err := e.Repo.SaveAccountTx(ctx, tx, acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}

		result = TradeResult{
			TradeID: trade.ID,
			Profit:  f.Profit,
			Equity:  acct.Equity,
			Status:  acct.Status,
		}
		return nil
	})
	if err != nil {
		if e.Logger != nil && !IsBusinessError(err) {
			e.Logger.Error("process trade failed",
				zap.Uint64("account_id", o.AccountID),
				zap.String("asset", o.Asset),
				zap.String("side", o.Side),
				zap.Error(err),
			)
		}
		return TradeResult{}, err
	}
	if e.Logger != nil {
		e.Logger.Info("trade processed",
			zap.Uint64("account_id", o.AccountID),
			zap.Uint64("trade_id", result.TradeID),
			zap.String("asset", o.Asset),
			zap.String("side", o.Side),
			zap.String("quantity", o.Quantity.String()),
			zap.String("price", o.Price.String()),
			zap.String("profit", result.Profit.String()),
			zap.String("equity", result.Equity.String()),
		)
	}
	return result, nil
}

func (e *Engine) ensureTradable(acct *models.Account) error {
	if acct.IsDemo() {
		if acct.Status != models.AccountStatusActive {
			if e.Logger != nil {
				e.Logger.Info("demo account reactivated",
					zap.Uint64("account_id", acct.ID),
					zap.String("from", acct.Status),
				)
			}
			acct.Status = models.AccountStatusActive
		}
		return nil
	}
	switch acct.Status {
	case models.AccountStatusActive, models.AccountStatusFunded:
		return nil
	}
	return ErrAccountNotTradable
}

// EvaluateAccount applies the rules to one account under its row lock.
func (e *Engine) EvaluateAccount(ctx context.Context, accountID uint64) (Transition, error) {
	if e == nil || e.Repo == nil {
		return Transition{}, errNotConfigured
	}
	var out Transition
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		acct, err := e.Repo.LockAccountTx(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("load account %d: %w", accountID, err)
		}
		if acct == nil {
			return ErrAccountNotFound
		}
		out = Transition{AccountID: acct.ID, From: acct.Status, To: acct.Status}
		if !e.rules().Evaluate(acct) {
			return nil
		}
		out.To = acct.Status
		if err := e.Repo.SaveAccountTx(ctx, tx, acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		return nil
	})
	if err != nil {
		return Transition{}, err
	}
	if out.Changed() {
		e.logTransition(out, "evaluate")
	}
	return out, nil
}

// EvaluateAllActive evaluates every active account with bounded parallelism.
// A failing account does not stop the pass; failures are joined into the returned error.
func (e *Engine) EvaluateAllActive(ctx context.Context) (EvaluationSummary, error) {
	if e == nil || e.Repo == nil {
		return EvaluationSummary{}, errNotConfigured
	}
	ids, err := e.Repo.ListAccountIDsByStatus(ctx, models.AccountStatusActive)
	if err != nil {
		return EvaluationSummary{}, fmt.Errorf("list active accounts: %w", err)
	}

	var (
		mu      sync.Mutex
		summary EvaluationSummary
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			t, err := e.EvaluateAccount(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors++
				errs = append(errs, fmt.Errorf("account %d: %w", id, err))
				return nil
			}
			summary.Evaluated++
			switch {
			case !t.Changed():
			case t.To == models.AccountStatusFailed:
				summary.Failed++
			case t.To == models.AccountStatusFunded:
				summary.Funded++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	if e.Logger != nil {
		e.Logger.Info("evaluation pass finished",
			zap.Int("accounts", len(ids)),
			zap.Int("evaluated", summary.Evaluated),
			zap.Int("failed", summary.Failed),
			zap.Int("funded", summary.Funded),
			zap.Int("errors", summary.Errors),
		)
	}
	return summary, errors.Join(errs...)
}

func (e *Engine) logTransition(t Transition, trigger string) {
	if e.Logger == nil {
		return
	}
	e.Logger.Info("account status changed",
		zap.Uint64("account_id", t.AccountID),
		zap.String("from", t.From),
		zap.String("to", t.To),
		zap.String("trigger", trigger),
	)
}

func (e *Engine) rules() Rules {
	if e.Rules == (Rules{}) {
		return DefaultRules()
	}
	return e.Rules
}

func (e *Engine) workers() int {
	if e.Workers <= 0 {
		return 4
	}
	return e.Workers
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
