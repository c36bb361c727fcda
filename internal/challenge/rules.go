package challenge

import (
	"github.com/shopspring/decimal"

	"tradesense/internal/config"
	"tradesense/internal/models"
)

// Rules are the evaluation thresholds in percent. They apply to every non-demo
// account regardless of the tier it was bought from.
type Rules struct {
	MaxTotalLossPct decimal.Decimal
	MaxDailyLossPct decimal.Decimal
	ProfitTargetPct decimal.Decimal
}

func DefaultRules() Rules {
	return Rules{
		MaxTotalLossPct: decimal.NewFromInt(10),
		MaxDailyLossPct: decimal.NewFromInt(5),
		ProfitTargetPct: decimal.NewFromInt(10),
	}
}

// NewRules reads thresholds from config, falling back to the defaults for unset values.
func NewRules(cfg config.ChallengeConfig) Rules {
	r := DefaultRules()
	if cfg.MaxTotalLossPct > 0 {
		r.MaxTotalLossPct = decimal.NewFromFloat(cfg.MaxTotalLossPct)
	}
	if cfg.MaxDailyLossPct > 0 {
		r.MaxDailyLossPct = decimal.NewFromFloat(cfg.MaxDailyLossPct)
	}
	if cfg.ProfitTargetPct > 0 {
		r.ProfitTargetPct = decimal.NewFromFloat(cfg.ProfitTargetPct)
	}
	return r
}

var hundred = decimal.NewFromInt(100)

func pctOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Evaluate moves an active, non-demo account to failed or funded when a threshold
// is crossed. Checks run in order: total loss, daily loss, profit target. It reports
// whether the status changed.
func (r Rules) Evaluate(a *models.Account) bool {
	if a == nil || a.Status != models.AccountStatusActive || a.IsDemo() {
		return false
	}
	if a.InitialBalance.Sub(a.Equity).GreaterThanOrEqual(pctOf(a.InitialBalance, r.MaxTotalLossPct)) {
		a.Status = models.AccountStatusFailed
		return true
	}
	if a.DailyStartingEquity.Sub(a.Equity).GreaterThanOrEqual(pctOf(a.DailyStartingEquity, r.MaxDailyLossPct)) {
		a.Status = models.AccountStatusFailed
		return true
	}
	if a.Equity.Sub(a.InitialBalance).GreaterThanOrEqual(pctOf(a.InitialBalance, r.ProfitTargetPct)) {
		a.Status = models.AccountStatusFunded
		return true
	}
	return false
}
