package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesense/internal/auth"
	"tradesense/internal/config"
	"tradesense/internal/models"
	"tradesense/internal/repository"
)

// DefaultChallenges is the catalog created on an empty database.
func DefaultChallenges() []models.Challenge {
	tier := func(name string, price, balance int64) models.Challenge {
		return models.Challenge{
			Name:            name,
			PriceDH:         decimal.NewFromInt(price),
			InitialBalance:  decimal.NewFromInt(balance),
			ProfitTargetPct: decimal.NewFromInt(10),
			MaxDailyLossPct: decimal.NewFromInt(5),
			MaxTotalLossPct: decimal.NewFromInt(10),
		}
	}
	return []models.Challenge{
		tier("Starter", 200, 5000),
		tier("Pro", 500, 25000),
		tier("Elite", 1000, 100000),
	}
}

type SeedStore interface {
	repository.ChallengeRepository
	repository.UserRepository
	repository.AccountRepository
}

// Seed creates the challenge catalog, an admin user and a demo trader. It is idempotent:
// existing rows are left alone. Users are only created when a password is configured.
func Seed(ctx context.Context, repo SeedStore, cfg config.Config, log *zap.Logger) error {
	if repo == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	count, err := repo.CountChallenges(ctx)
	if err != nil {
		return fmt.Errorf("count challenges: %w", err)
	}
	if count == 0 {
		if err := repo.CreateChallenges(ctx, DefaultChallenges()); err != nil {
			return fmt.Errorf("seed challenges: %w", err)
		}
		log.Info("seeded challenge catalog", zap.Int("tiers", len(DefaultChallenges())))
	}

	iter := cfg.Auth.PasswordIter
	if _, err := seedUser(ctx, repo, "admin", cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, true, iter, log); err != nil {
		return err
	}
	trader, err := seedUser(ctx, repo, "demo_trader", cfg.Seed.DemoEmail, cfg.Seed.DemoPassword, false, iter, log)
	if err != nil {
		return err
	}
	if trader == nil {
		return nil
	}
	accounts, err := repo.ListAccountsByUser(ctx, trader.ID)
	if err != nil {
		return fmt.Errorf("list demo accounts: %w", err)
	}
	if len(accounts) > 0 {
		return nil
	}
	balance := decimal.NewFromFloat(cfg.Challenge.DemoBalance)
	if !balance.IsPositive() {
		balance = decimal.NewFromInt(10000)
	}
	acct := models.NewAccount(trader.ID, balance, models.ChallengeTypeDemo, models.AccountStatusActive)
	if err := repo.CreateAccount(ctx, acct); err != nil {
		return fmt.Errorf("seed demo account: %w", err)
	}
	log.Info("seeded demo account", zap.Uint64("account_id", acct.ID), zap.Uint64("user_id", trader.ID))
	return nil
}

func seedUser(ctx context.Context, repo repository.UserRepository, username, email, password string, admin bool, iter int, log *zap.Logger) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil
	}
	existing, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", email, err)
	}
	if existing != nil {
		return existing, nil
	}
	hash, err := auth.HashPassword(password, iter)
	if err != nil {
		return nil, err
	}
	u := &models.User{Username: username, Email: email, PasswordHash: hash, IsAdmin: admin}
	if err := repo.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("seed user %s: %w", email, err)
	}
	log.Info("seeded user", zap.String("email", email), zap.Bool("admin", admin))
	return u, nil
}
