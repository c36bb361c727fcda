package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

func (s *Store) InsertWithdrawal(ctx context.Context, item *models.Withdrawal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetWithdrawalByID(ctx context.Context, id uint64) (*models.Withdrawal, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Withdrawal
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateWithdrawalStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string, processedAt *time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	updates := map[string]any{"status": status}
	if processedAt != nil {
		updates["processed_at"] = *processedAt
	}
	return s.txOr(ctx, tx).Model(&models.Withdrawal{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) ListWithdrawals(ctx context.Context, params repository.ListWithdrawalsParams) ([]models.Withdrawal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := withdrawalFilters(s.db.WithContext(ctx).Model(&models.Withdrawal{}), params)
	var items []models.Withdrawal
	if err := query.Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountWithdrawals(ctx context.Context, params repository.ListWithdrawalsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := withdrawalFilters(s.db.WithContext(ctx).Model(&models.Withdrawal{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func withdrawalFilters(query *gorm.DB, params repository.ListWithdrawalsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.ToLower(strings.TrimSpace(*params.Status)))
	}
	if params.AccountID != nil && *params.AccountID > 0 {
		query = query.Where("account_id = ?", *params.AccountID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("created_at <= ?", *params.Until)
	}
	return query
}
