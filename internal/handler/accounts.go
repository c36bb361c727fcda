package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesense/internal/auth"
	"tradesense/internal/models"
	"tradesense/internal/service"
)

// AccountReader is the trader-facing account surface of the account service.
type AccountReader interface {
	ListChallenges(ctx context.Context) ([]models.Challenge, error)
	ActivateChallenge(ctx context.Context, in service.ActivateInput) (service.Activation, error)
	Account(ctx context.Context, accountID uint64) (service.AccountView, error)
	ListAccounts(ctx context.Context, userID uint64) ([]service.AccountView, error)
	Portfolio(ctx context.Context, userID uint64) (service.Portfolio, error)
	UserChallenges(ctx context.Context, userID uint64) ([]service.UserChallengeView, error)
	CurrentUserChallenge(ctx context.Context, userID uint64) (*service.UserChallengeView, error)
	Leaderboard(ctx context.Context) ([]service.LeaderboardEntry, error)
	RequestWithdrawal(ctx context.Context, accountID uint64, amount decimal.Decimal) (service.WithdrawalReceipt, error)
}

type AccountHandler struct {
	Service  AccountReader
	Switches FeatureGate
	JWT      auth.JWT
	Logger   *zap.Logger
}

type payRequest struct {
	ChallengeID   uint64 `json:"challenge_id" binding:"required"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
}

type withdrawalRequest struct {
	AccountID uint64          `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type challengeItem struct {
	ID                  uint64          `json:"id"`
	Name                string          `json:"name"`
	PriceDH             decimal.Decimal `json:"price_dh"`
	InitialBalance      decimal.Decimal `json:"initial_balance"`
	ProfitTargetPercent decimal.Decimal `json:"profit_target_percent"`
	MaxDailyLossPercent decimal.Decimal `json:"max_daily_loss_percent"`
	MaxTotalLossPercent decimal.Decimal `json:"max_total_loss_percent"`
}

func (h *AccountHandler) Register(r *gin.Engine) {
	r.GET("/api/challenges", h.listChallenges)
	r.GET("/api/leaderboard", h.leaderboard)

	user := r.Group("/api", auth.RequireUser(h.JWT))
	user.POST("/pay", h.pay)
	user.GET("/accounts/:user_id", h.listAccounts)
	user.GET("/portfolio/:user_id", h.portfolio)
	user.GET("/user-challenges/:user_id", h.userChallenges)
	user.GET("/user-challenges/:user_id/current", h.currentUserChallenge)
	user.POST("/withdrawals/request", h.requestWithdrawal)
}

// @Summary List challenge tiers
// @Tags challenges
// @Success 200 {object} apiResponse
// @Router /api/challenges [get]
func (h *AccountHandler) listChallenges(c *gin.Context) {
	items, err := h.Service.ListChallenges(c.Request.Context())
	if err != nil {
		fail(c, h.Logger, "list challenges", err)
		return
	}
	out := make([]challengeItem, 0, len(items))
	for _, item := range items {
		out = append(out, challengeItem{
			ID:                  item.ID,
			Name:                item.Name,
			PriceDH:             item.PriceDH,
			InitialBalance:      item.InitialBalance,
			ProfitTargetPercent: item.ProfitTargetPct,
			MaxDailyLossPercent: item.MaxDailyLossPct,
			MaxTotalLossPercent: item.MaxTotalLossPct,
		})
	}
	Ok(c, out, nil)
}

// @Summary Activate a challenge for the caller
// @Tags challenges
// @Security BearerAuth
// @Accept json
// @Param body body payRequest true "purchase"
// @Success 200 {object} apiResponse
// @Router /api/pay [post]
func (h *AccountHandler) pay(c *gin.Context) {
	claims, _ := auth.ClaimsFromContext(c)
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	out, err := h.Service.ActivateChallenge(c.Request.Context(), service.ActivateInput{
		UserID:        claims.UserID,
		ChallengeID:   req.ChallengeID,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		fail(c, h.Logger, "activate challenge", err)
		return
	}
	Ok(c, out, nil)
}

// @Summary List a user's accounts
// @Tags accounts
// @Security BearerAuth
// @Param user_id path int true "user id"
// @Success 200 {object} apiResponse
// @Router /api/accounts/{user_id} [get]
func (h *AccountHandler) listAccounts(c *gin.Context) {
	userID, ok := h.ownedUser(c)
	if !ok {
		return
	}
	items, err := h.Service.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		fail(c, h.Logger, "list accounts", err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Portfolio of a user's first account
// @Tags accounts
// @Security BearerAuth
// @Param user_id path int true "user id"
// @Success 200 {object} apiResponse
// @Router /api/portfolio/{user_id} [get]
func (h *AccountHandler) portfolio(c *gin.Context) {
	userID, ok := h.ownedUser(c)
	if !ok {
		return
	}
	out, err := h.Service.Portfolio(c.Request.Context(), userID)
	if err != nil {
		fail(c, h.Logger, "portfolio", err)
		return
	}
	Ok(c, out, nil)
}

// @Summary A user's challenge purchases, newest first
// @Tags challenges
// @Security BearerAuth
// @Param user_id path int true "user id"
// @Success 200 {object} apiResponse
// @Router /api/user-challenges/{user_id} [get]
func (h *AccountHandler) userChallenges(c *gin.Context) {
	userID, ok := h.ownedUser(c)
	if !ok {
		return
	}
	items, err := h.Service.UserChallenges(c.Request.Context(), userID)
	if err != nil {
		fail(c, h.Logger, "user challenges", err)
		return
	}
	Ok(c, items, nil)
}

// @Summary A user's most recent challenge purchase
// @Tags challenges
// @Security BearerAuth
// @Param user_id path int true "user id"
// @Success 200 {object} apiResponse
// @Router /api/user-challenges/{user_id}/current [get]
func (h *AccountHandler) currentUserChallenge(c *gin.Context) {
	userID, ok := h.ownedUser(c)
	if !ok {
		return
	}
	current, err := h.Service.CurrentUserChallenge(c.Request.Context(), userID)
	if err != nil {
		fail(c, h.Logger, "current user challenge", err)
		return
	}
	Ok(c, gin.H{"current": current}, nil)
}

// ownedUser reads :user_id and aborts unless the caller may act for that user.
func (h *AccountHandler) ownedUser(c *gin.Context) (uint64, bool) {
	userID := uint64Param(c, "user_id")
	if userID == 0 {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return 0, false
	}
	if !callerMayAccess(c, userID) {
		Error(c, http.StatusForbidden, "forbidden", nil)
		return 0, false
	}
	return userID, true
}

// @Summary Top accounts by profit percentage
// @Tags accounts
// @Success 200 {object} apiResponse
// @Router /api/leaderboard [get]
func (h *AccountHandler) leaderboard(c *gin.Context) {
	items, err := h.Service.Leaderboard(c.Request.Context())
	if err != nil {
		fail(c, h.Logger, "leaderboard", err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Request a payout from a funded account
// @Tags withdrawals
// @Security BearerAuth
// @Accept json
// @Param body body withdrawalRequest true "withdrawal"
// @Success 200 {object} apiResponse
// @Router /api/withdrawals/request [post]
func (h *AccountHandler) requestWithdrawal(c *gin.Context) {
	if paused(c, h.Switches, service.FeatureWithdrawals, "Withdrawals are paused") {
		return
	}
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	ctx := c.Request.Context()
	acct, err := h.Service.Account(ctx, req.AccountID)
	if err != nil {
		fail(c, h.Logger, "load account", err)
		return
	}
	if !callerMayAccess(c, acct.UserID) {
		Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}
	out, err := h.Service.RequestWithdrawal(ctx, req.AccountID, req.Amount)
	if err != nil {
		fail(c, h.Logger, "request withdrawal", err)
		return
	}
	Ok(c, out, nil)
}
