package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesense/internal/models"
)

func (s *Store) LockAccountTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Account, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Account
	err := s.txOr(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Model(&models.Account{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"balance":               item.Balance,
			"equity":                item.Equity,
			"daily_starting_equity": item.DailyStartingEquity,
			"status":                item.Status,
			"updated_at":            gorm.Expr("now()"),
		}).Error
}

func (s *Store) LatestTradeTx(ctx context.Context, tx *gorm.DB, accountID uint64) (*models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Trade
	err := s.txOr(ctx, tx).
		Where("account_id = ?", accountID).
		Order("timestamp desc").
		Order("id desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPositionTx(ctx context.Context, tx *gorm.DB, accountID uint64, asset string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return nil, nil
	}
	var item models.Position
	err := s.txOr(ctx, tx).
		Where("account_id = ?", accountID).
		Where("asset = ?", asset).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPositionsTx(ctx context.Context, tx *gorm.DB, accountID uint64) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Position
	if err := s.txOr(ctx, tx).
		Where("account_id = ?", accountID).
		Order("asset asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositionsByAccount(ctx context.Context, accountID uint64) ([]models.Position, error) {
	return s.ListPositionsTx(ctx, nil, accountID)
}

func (s *Store) SavePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == 0 {
		return s.txOr(ctx, tx).Create(item).Error
	}
	return s.txOr(ctx, tx).Save(item).Error
}

func (s *Store) DeletePositionTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.txOr(ctx, tx).Where("id = ?", id).Delete(&models.Position{}).Error
}

func (s *Store) InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Create(item).Error
}

func (s *Store) ListAccountIDsByStatus(ctx context.Context, status string) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []uint64
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("status = ?", status).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
