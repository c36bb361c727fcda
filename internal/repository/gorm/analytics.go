package gormrepository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

func (s *Store) AccountStats(ctx context.Context, params repository.ListAccountsParams) ([]repository.AccountStatsRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.AccountStatsRow
	err := accountFilters(s.db.WithContext(ctx).Model(&models.Account{}), params).
		Select(`status,
			challenge_type,
			COUNT(*) AS accounts,
			COALESCE(SUM(equity - initial_balance), 0) AS profit`).
		Group("status, challenge_type").
		Order("status, challenge_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DailyTradePnL sums realized profit per UTC day for trades of the selected accounts.
func (s *Store) DailyTradePnL(ctx context.Context, params repository.ListAccountsParams, from, to time.Time) ([]repository.DailyPnLRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.DailyPnLRow
	err := s.db.WithContext(ctx).Model(&models.Trade{}).
		Select(`DATE(timestamp AT TIME ZONE 'UTC') AS day, COALESCE(SUM(profit), 0) AS pnl`).
		Where("account_id IN (?)", s.accountIDs(ctx, params)).
		Where("timestamp >= ? AND timestamp <= ?", from, to).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) DailyAccountsOpened(ctx context.Context, params repository.ListAccountsParams) ([]repository.DailyCountRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.DailyCountRow
	err := accountFilters(s.db.WithContext(ctx).Model(&models.Account{}), params).
		Select(`DATE(created_at AT TIME ZONE 'UTC') AS day, COUNT(*) AS count`).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) WithdrawalStatusCounts(ctx context.Context, params repository.ListAccountsParams, from, to time.Time) ([]repository.StatusCountRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.StatusCountRow
	err := s.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("LOWER(status) AS status, COUNT(*) AS count").
		Where("account_id IN (?)", s.accountIDs(ctx, params)).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Group("LOWER(status)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// accountIDs is a subquery selecting the ids of the filtered accounts.
func (s *Store) accountIDs(ctx context.Context, params repository.ListAccountsParams) *gorm.DB {
	return accountFilters(s.db.WithContext(ctx).Model(&models.Account{}), params).Select("id")
}
