package gormrepository

import (
	"context"

	"gorm.io/gorm"

	"tradesense/internal/models"
)

func (s *Store) InsertAdminActionLogTx(ctx context.Context, tx *gorm.DB, item *models.AdminActionLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Create(item).Error
}

func (s *Store) ListAdminActionLogs(ctx context.Context, limit, offset int) ([]models.AdminActionLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.AdminActionLog
	if err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 50)).
		Offset(normalizeOffset(offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
