package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

func (s *Store) ListChallenges(ctx context.Context) ([]models.Challenge, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Challenge
	if err := s.db.WithContext(ctx).Order("price_dh asc").Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetChallengeByID(ctx context.Context, id uint64) (*models.Challenge, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Challenge
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetChallengeByName(ctx context.Context, name string) (*models.Challenge, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var item models.Challenge
	err := s.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CountChallenges(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Challenge{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// CreateChallenges inserts catalog rows, leaving existing names untouched.
func (s *Store) CreateChallenges(ctx context.Context, items []models.Challenge) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&items).Error
}

func (s *Store) InsertUserChallengeTx(ctx context.Context, tx *gorm.DB, item *models.UserChallenge) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Create(item).Error
}

func (s *Store) ListUserChallenges(ctx context.Context, userID uint64) ([]repository.UserChallengeRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.UserChallengeRow
	err := s.db.WithContext(ctx).
		Table("user_challenges AS uc").
		Select("uc.*, c.name AS challenge_name, c.price_dh AS price_dh, c.initial_balance AS initial_balance").
		Joins("JOIN challenges c ON c.id = uc.challenge_id").
		Where("uc.user_id = ?", userID).
		Order("uc.created_at desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
