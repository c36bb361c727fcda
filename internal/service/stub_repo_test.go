package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

// stubRepo overrides the repository methods account service tests touch. Calling
// anything else panics on the nil embedded interface.
type stubRepo struct {
	repository.Repository

	users          map[uint64]models.User
	challenges     map[uint64]models.Challenge
	accounts       map[uint64]models.Account
	positions      []models.Position
	trades         []models.Trade
	withdrawals    map[uint64]models.Withdrawal
	userChallenges []models.UserChallenge
	logs           []models.AdminActionLog
	leaderboard    []repository.LeaderboardRow
	nextID         uint64

	stats            []repository.AccountStatsRow
	lastStatsParams  repository.ListAccountsParams
	dailyPnL         []repository.DailyPnLRow
	opened           []repository.DailyCountRow
	withdrawalCounts []repository.StatusCountRow
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:       map[uint64]models.User{},
		challenges:  map[uint64]models.Challenge{},
		accounts:    map[uint64]models.Account{},
		withdrawals: map[uint64]models.Withdrawal{},
		nextID:      1000,
	}
}

func (s *stubRepo) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *stubRepo) ListChallenges(ctx context.Context) ([]models.Challenge, error) {
	var out []models.Challenge
	for _, c := range s.challenges {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubRepo) GetChallengeByID(ctx context.Context, id uint64) (*models.Challenge, error) {
	c, ok := s.challenges[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *stubRepo) CreateAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error {
	item.ID = s.id()
	item.CreatedAt = time.Now().UTC()
	s.accounts[item.ID] = *item
	return nil
}

func (s *stubRepo) InsertUserChallengeTx(ctx context.Context, tx *gorm.DB, item *models.UserChallenge) error {
	item.ID = s.id()
	s.userChallenges = append(s.userChallenges, *item)
	return nil
}

func (s *stubRepo) GetAccountByID(ctx context.Context, id uint64) (*models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *stubRepo) LockAccountTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Account, error) {
	return s.GetAccountByID(ctx, id)
}

func (s *stubRepo) UpdateAccountStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error {
	a := s.accounts[id]
	a.Status = status
	s.accounts[id] = a
	return nil
}

func (s *stubRepo) ListAccountsByUser(ctx context.Context, userID uint64) ([]models.Account, error) {
	var out []models.Account
	for id := uint64(0); id <= s.nextID; id++ {
		if a, ok := s.accounts[id]; ok && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubRepo) ListPositionsByAccount(ctx context.Context, accountID uint64) ([]models.Position, error) {
	var out []models.Position
	for _, p := range s.positions {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range s.trades {
		if t.AccountID == params.AccountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubRepo) Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardRow, error) {
	if len(s.leaderboard) > limit {
		return s.leaderboard[:limit], nil
	}
	return s.leaderboard, nil
}

func (s *stubRepo) InsertWithdrawal(ctx context.Context, item *models.Withdrawal) error {
	item.ID = s.id()
	item.CreatedAt = time.Now().UTC()
	s.withdrawals[item.ID] = *item
	return nil
}

func (s *stubRepo) GetWithdrawalByID(ctx context.Context, id uint64) (*models.Withdrawal, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *stubRepo) UpdateWithdrawalStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string, processedAt *time.Time) error {
	w := s.withdrawals[id]
	w.Status = status
	if processedAt != nil {
		w.ProcessedAt = processedAt
	}
	s.withdrawals[id] = w
	return nil
}

func (s *stubRepo) InsertAdminActionLogTx(ctx context.Context, tx *gorm.DB, item *models.AdminActionLog) error {
	item.ID = s.id()
	s.logs = append(s.logs, *item)
	return nil
}

// ListUserChallenges joins purchases to the catalog, newest (highest id) first.
func (s *stubRepo) ListUserChallenges(ctx context.Context, userID uint64) ([]repository.UserChallengeRow, error) {
	var out []repository.UserChallengeRow
	for i := len(s.userChallenges) - 1; i >= 0; i-- {
		uc := s.userChallenges[i]
		if uc.UserID != userID {
			continue
		}
		c := s.challenges[uc.ChallengeID]
		out = append(out, repository.UserChallengeRow{
			UserChallenge:  uc,
			ChallengeName:  c.Name,
			PriceDH:        c.PriceDH,
			InitialBalance: c.InitialBalance,
		})
	}
	return out, nil
}

func (s *stubRepo) AccountStats(ctx context.Context, params repository.ListAccountsParams) ([]repository.AccountStatsRow, error) {
	s.lastStatsParams = params
	return s.stats, nil
}

func (s *stubRepo) DailyTradePnL(ctx context.Context, params repository.ListAccountsParams, from, to time.Time) ([]repository.DailyPnLRow, error) {
	return s.dailyPnL, nil
}

func (s *stubRepo) DailyAccountsOpened(ctx context.Context, params repository.ListAccountsParams) ([]repository.DailyCountRow, error) {
	return s.opened, nil
}

func (s *stubRepo) WithdrawalStatusCounts(ctx context.Context, params repository.ListAccountsParams, from, to time.Time) ([]repository.StatusCountRow, error) {
	return s.withdrawalCounts, nil
}
