package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradesense/internal/models"
)

// LedgerRepository is the transactional store behind trade processing and rule evaluation.
// Methods ending in Tx run on the transaction handle passed to InTx.
type LedgerRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// LockAccountTx reads the account row with a write lock held until the transaction ends.
	// It returns nil, nil when the account does not exist.
	LockAccountTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Account, error)
	SaveAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error
	LatestTradeTx(ctx context.Context, tx *gorm.DB, accountID uint64) (*models.Trade, error)
	GetPositionTx(ctx context.Context, tx *gorm.DB, accountID uint64, asset string) (*models.Position, error)
	ListPositionsTx(ctx context.Context, tx *gorm.DB, accountID uint64) ([]models.Position, error)
	SavePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error
	DeletePositionTx(ctx context.Context, tx *gorm.DB, id uint64) error
	InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error

	ListAccountIDsByStatus(ctx context.Context, status string) ([]uint64, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, item *models.User) error
	CreateUserTx(ctx context.Context, tx *gorm.DB, item *models.User) error
	UpdateUser(ctx context.Context, item *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type ChallengeRepository interface {
	ListChallenges(ctx context.Context) ([]models.Challenge, error)
	GetChallengeByID(ctx context.Context, id uint64) (*models.Challenge, error)
	// GetChallengeByName matches case-insensitively.
	GetChallengeByName(ctx context.Context, name string) (*models.Challenge, error)
	CountChallenges(ctx context.Context) (int64, error)
	CreateChallenges(ctx context.Context, items []models.Challenge) error
	InsertUserChallengeTx(ctx context.Context, tx *gorm.DB, item *models.UserChallenge) error
	ListUserChallenges(ctx context.Context, userID uint64) ([]UserChallengeRow, error)
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, item *models.Account) error
	CreateAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error
	GetAccountByID(ctx context.Context, id uint64) (*models.Account, error)
	ListAccountsByUser(ctx context.Context, userID uint64) ([]models.Account, error)
	ListAccounts(ctx context.Context, params ListAccountsParams) ([]models.Account, error)
	CountAccounts(ctx context.Context, params ListAccountsParams) (int64, error)
	UpdateAccountStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error
	ListPositionsByAccount(ctx context.Context, accountID uint64) ([]models.Position, error)
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
}

type WithdrawalRepository interface {
	InsertWithdrawal(ctx context.Context, item *models.Withdrawal) error
	GetWithdrawalByID(ctx context.Context, id uint64) (*models.Withdrawal, error)
	UpdateWithdrawalStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string, processedAt *time.Time) error
	ListWithdrawals(ctx context.Context, params ListWithdrawalsParams) ([]models.Withdrawal, error)
	CountWithdrawals(ctx context.Context, params ListWithdrawalsParams) (int64, error)
}

type AuditRepository interface {
	InsertAdminActionLogTx(ctx context.Context, tx *gorm.DB, item *models.AdminActionLog) error
	ListAdminActionLogs(ctx context.Context, limit, offset int) ([]models.AdminActionLog, error)
}

// AnalyticsRepository aggregates over the accounts selected by ListAccountsParams.
// Limit, Offset and ordering are ignored.
type AnalyticsRepository interface {
	AccountStats(ctx context.Context, params ListAccountsParams) ([]AccountStatsRow, error)
	DailyTradePnL(ctx context.Context, params ListAccountsParams, from, to time.Time) ([]DailyPnLRow, error)
	DailyAccountsOpened(ctx context.Context, params ListAccountsParams) ([]DailyCountRow, error)
	WithdrawalStatusCounts(ctx context.Context, params ListAccountsParams, from, to time.Time) ([]StatusCountRow, error)
}

type SettingsRepository interface {
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

// Repository is the full store used by the server wiring.
type Repository interface {
	LedgerRepository
	UserRepository
	ChallengeRepository
	AccountRepository
	WithdrawalRepository
	AuditRepository
	SettingsRepository
	AnalyticsRepository
}

type ListAccountsParams struct {
	Limit         int
	Offset        int
	Status        *string
	ChallengeType *string
	UserID        *uint64
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	OrderBy       string
	Asc           *bool
}

type ListTradesParams struct {
	Limit     int
	Offset    int
	AccountID uint64
	Asset     *string
	Since     *time.Time
	OrderBy   string
	Asc       *bool
}

type ListWithdrawalsParams struct {
	Limit     int
	Offset    int
	Status    *string
	AccountID *uint64
	Since     *time.Time
	Until     *time.Time
}

type LeaderboardRow struct {
	AccountID      uint64
	Username       string
	Status         string
	ChallengeType  string
	Equity         decimal.Decimal
	InitialBalance decimal.Decimal
	Trades         int64
}

type UserChallengeRow struct {
	models.UserChallenge
	ChallengeName  string
	PriceDH        decimal.Decimal
	InitialBalance decimal.Decimal
}

type ListSystemSettingsParams struct {
	Limit  int
	Offset int
	Prefix *string
}

type AccountStatsRow struct {
	Status        string
	ChallengeType string
	Accounts      int64
	Profit        decimal.Decimal
}

type DailyPnLRow struct {
	Day time.Time
	PnL decimal.Decimal `gorm:"column:pnl"`
}

type DailyCountRow struct {
	Day   time.Time
	Count int64
}

type StatusCountRow struct {
	Status string
	Count  int64
}
