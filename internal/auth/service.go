package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

var (
	ErrInvalidEmail       = errors.New("Invalid email address")
	ErrWeakPassword       = errors.New("Password must be at least 6 characters")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrUsernameTaken      = errors.New("Username already taken")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrInvalidUsername    = errors.New("Username is required")
)

// Account types accepted at registration.
const (
	AccountTypeDemo  = "demo"
	AccountTypeTrial = "trial"
	AccountTypePaid  = "paid"
)

// Store is the slice of the repository the auth flows need.
type Store interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	CreateUserTx(ctx context.Context, tx *gorm.DB, item *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetChallengeByName(ctx context.Context, name string) (*models.Challenge, error)
	CreateAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error
}

var _ Store = (repository.Repository)(nil)

type Service struct {
	Store  Store
	JWT    JWT
	Logger *zap.Logger

	PasswordIterations int
	MinPasswordChars   int
	DemoBalance        decimal.Decimal
	TrialBalance       decimal.Decimal
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	AccountType string
	Plan        string
}

type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
	UserID      uint64 `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	IsAdmin     bool   `json:"is_admin"`
	AccountID   uint64 `json:"account_id,omitempty"`
}

// Register creates a user and, for a known account type, its first trading account,
// in one transaction. Paid accounts start pending until a challenge purchase is confirmed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if !strings.Contains(email, "@") {
		return Session{}, ErrInvalidEmail
	}
	if len(in.Password) < s.minPasswordChars() {
		return Session{}, ErrWeakPassword
	}
	if username == "" {
		return Session{}, ErrInvalidUsername
	}
	existing, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return Session{}, ErrEmailTaken
	}
	if taken, err := s.Store.GetUserByUsername(ctx, username); err != nil {
		return Session{}, fmt.Errorf("lookup username: %w", err)
	} else if taken != nil {
		return Session{}, ErrUsernameTaken
	}

	hash, err := HashPassword(in.Password, s.PasswordIterations)
	if err != nil {
		return Session{}, err
	}
	user := &models.User{Username: username, Email: email, PasswordHash: hash}
	var acct *models.Account
	err = s.Store.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Store.CreateUserTx(ctx, tx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		a, err := s.initialAccount(ctx, user.ID, in.AccountType, in.Plan)
		if err != nil {
			return err
		}
		if a != nil {
			if err := s.Store.CreateAccountTx(ctx, tx, a); err != nil {
				return fmt.Errorf("create account: %w", err)
			}
		}
		acct = a
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	if s.Logger != nil {
		fields := []zap.Field{zap.Uint64("user_id", user.ID), zap.String("email", email)}
		if acct != nil {
			fields = append(fields,
				zap.Uint64("account_id", acct.ID),
				zap.String("challenge_type", acct.ChallengeType),
				zap.String("status", acct.Status),
			)
		}
		s.Logger.Info("user registered", fields...)
	}

	out, err := s.issue(user)
	if err != nil {
		return Session{}, err
	}
	if acct != nil {
		out.AccountID = acct.ID
	}
	return out, nil
}

func (s *Service) initialAccount(ctx context.Context, userID uint64, accountType, plan string) (*models.Account, error) {
	switch strings.ToLower(strings.TrimSpace(accountType)) {
	case AccountTypeDemo:
		return models.NewAccount(userID, orDefault(s.DemoBalance, 10000), models.ChallengeTypeDemo, models.AccountStatusActive), nil
	case AccountTypeTrial:
		return models.NewAccount(userID, orDefault(s.TrialBalance, 2000), models.ChallengeTypeTrial, models.AccountStatusActive), nil
	case AccountTypePaid:
		balance := decimal.Zero
		kind := AccountTypePaid
		tier, err := s.Store.GetChallengeByName(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("lookup plan: %w", err)
		}
		if tier != nil {
			balance = tier.InitialBalance
			kind = tier.Name
		}
		return models.NewAccount(userID, balance, kind, models.AccountStatusPending), nil
	}
	return nil, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}
	if user == nil || !VerifyPassword(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Refresh re-issues a token for a still valid session.
func (s *Service) Refresh(ctx context.Context, claims Claims) (Session, error) {
	user, err := s.Store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) issue(user *models.User) (Session, error) {
	token, exp, err := s.JWT.Sign(Claims{UserID: user.ID, IsAdmin: user.IsAdmin})
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   exp.Unix(),
		UserID:      user.ID,
		Email:       user.Email,
		Username:    user.Username,
		IsAdmin:     user.IsAdmin,
	}, nil
}

func (s *Service) minPasswordChars() int {
	if s.MinPasswordChars <= 0 {
		return 6
	}
	return s.MinPasswordChars
}

func orDefault(v decimal.Decimal, fallback int64) decimal.Decimal {
	if v.IsPositive() {
		return v
	}
	return decimal.NewFromInt(fallback)
}

// IsClientError reports whether err should be shown to the caller as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrInvalidCredentials)
}
