package cronrunner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradesense/internal/challenge"
	"tradesense/internal/config"
	"tradesense/internal/marketdata"
	"tradesense/internal/service"
)

// Evaluator is the batch entry point the scheduler drives.
type Evaluator interface {
	EvaluateAllActive(ctx context.Context) (challenge.EvaluationSummary, error)
}

// MarketWarmer refreshes the cached market overview.
type MarketWarmer interface {
	Refresh(ctx context.Context) (marketdata.Snapshot, error)
}

// FeatureGate lets an admin pause a job at runtime without removing its schedule.
type FeatureGate interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

// Register schedules rule evaluation and market warm-up. Empty specs disable a job.
// A nil gate runs every job.
func Register(r *Runner, cfg config.CronConfig, eval Evaluator, market MarketWarmer, gate FeatureGate) error {
	enabled := func(ctx context.Context, key string) bool {
		return gate == nil || gate.IsEnabled(ctx, key, true)
	}
	if spec := strings.TrimSpace(cfg.Evaluate); spec != "" && eval != nil {
		timeout := cfg.EvalTimeout
		if timeout <= 0 {
			timeout = 50 * time.Second
		}
		if _, err := r.Add("evaluate_accounts", spec, timeout, func(ctx context.Context) error {
			if !enabled(ctx, service.FeatureEvaluateCron) {
				return nil
			}
			summary, err := eval.EvaluateAllActive(ctx)
			if summary.Failed > 0 || summary.Funded > 0 {
				r.logger.Info("evaluation transitions",
					zap.Int("failed", summary.Failed),
					zap.Int("funded", summary.Funded),
				)
			}
			return err
		}); err != nil {
			return err
		}
	}
	if spec := strings.TrimSpace(cfg.MarketWarm); spec != "" && market != nil {
		if _, err := r.Add("market_warm", spec, 20*time.Second, func(ctx context.Context) error {
			if !enabled(ctx, service.FeatureMarketWarm) {
				return nil
			}
			_, err := market.Refresh(ctx)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}
