package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

func (s *Store) CreateAccount(ctx context.Context, item *models.Account) error {
	return s.CreateAccountTx(ctx, nil, item)
}

func (s *Store) CreateAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Create(item).Error
}

func (s *Store) GetAccountByID(ctx context.Context, id uint64) (*models.Account, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID uint64) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Account
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListAccounts(ctx context.Context, params repository.ListAccountsParams) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := accountFilters(s.db.WithContext(ctx).Model(&models.Account{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.Account
	if err := query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAccounts(ctx context.Context, params repository.ListAccountsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := accountFilters(s.db.WithContext(ctx).Model(&models.Account{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func accountFilters(query *gorm.DB, params repository.ListAccountsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.ChallengeType != nil && strings.TrimSpace(*params.ChallengeType) != "" {
		query = query.Where("challenge_type = ?", strings.ToLower(strings.TrimSpace(*params.ChallengeType)))
	}
	if params.UserID != nil && *params.UserID > 0 {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.CreatedFrom != nil && !params.CreatedFrom.IsZero() {
		query = query.Where("created_at >= ?", *params.CreatedFrom)
	}
	if params.CreatedTo != nil && !params.CreatedTo.IsZero() {
		query = query.Where("created_at <= ?", *params.CreatedTo)
	}
	return query
}

func (s *Store) UpdateAccountStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.txOr(ctx, tx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": gorm.Expr("now()"),
		}).Error
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Trade{}).Where("account_id = ?", params.AccountID)
	if params.Asset != nil && strings.TrimSpace(*params.Asset) != "" {
		query = query.Where("asset = ?", strings.TrimSpace(*params.Asset))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("timestamp >= ?", *params.Since)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "timestamp")
	var items []models.Trade
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Leaderboard ranks accounts by return over initial balance. Accounts without an
// initial balance rank as zero.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 10)
	var rows []repository.LeaderboardRow
	err := s.db.WithContext(ctx).
		Table("accounts AS a").
		Select(`a.id AS account_id,
			COALESCE(u.username, 'Unknown') AS username,
			a.status AS status,
			a.challenge_type AS challenge_type,
			a.equity AS equity,
			a.initial_balance AS initial_balance,
			(SELECT COUNT(*) FROM trades t WHERE t.account_id = a.id) AS trades`).
		Joins("LEFT JOIN users u ON u.id = a.user_id").
		Order("CASE WHEN a.initial_balance > 0 THEN (a.equity - a.initial_balance) / a.initial_balance ELSE 0 END DESC").
		Order("a.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
