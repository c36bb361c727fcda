package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tradesense/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, item *models.User) error {
	return s.CreateUserTx(ctx, nil, item)
}

func (s *Store) CreateUserTx(ctx context.Context, tx *gorm.DB, item *models.User) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Create(item).Error
}

func (s *Store) UpdateUser(ctx context.Context, item *models.User) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	return s.firstUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return s.firstUser(ctx, "LOWER(email) = ?", email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	return s.firstUser(ctx, "username = ?", username)
}

func (s *Store) firstUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var item models.User
	err := s.db.WithContext(ctx).Where(where, arg).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
