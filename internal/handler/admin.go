package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesense/internal/auth"
	"tradesense/internal/challenge"
	"tradesense/internal/models"
	"tradesense/internal/repository"
	"tradesense/internal/service"
)

type AdminService interface {
	AdminAccounts(ctx context.Context, params repository.ListAccountsParams) ([]service.AccountView, int64, error)
	SetAccountStatus(ctx context.Context, actorID, accountID uint64, status string) (service.AccountView, error)
	AdminWithdrawals(ctx context.Context, params repository.ListWithdrawalsParams) ([]service.WithdrawalView, int64, error)
	UpdateWithdrawalStatus(ctx context.Context, actorID, withdrawalID uint64, status string) (service.WithdrawalView, error)
	AuditLog(ctx context.Context, limit, offset int) ([]models.AdminActionLog, error)
	AccountDetails(ctx context.Context, accountID uint64) (service.AccountDetails, error)
	Analytics(ctx context.Context, q service.AnalyticsQuery) (service.Analytics, error)
}

type RuleEvaluator interface {
	EvaluateAccount(ctx context.Context, accountID uint64) (challenge.Transition, error)
	EvaluateAllActive(ctx context.Context) (challenge.EvaluationSummary, error)
}

type AdminHandler struct {
	Service  AdminService
	Engine   RuleEvaluator
	Settings SwitchAdmin
	JWT      auth.JWT
	Logger   *zap.Logger
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

var accountOrderColumns = map[string]string{
	"id":         "id",
	"created_at": "created_at",
	"equity":     "equity",
	"balance":    "balance",
	"status":     "status",
}

func (h *AdminHandler) Register(r *gin.Engine) {
	group := r.Group("/api/admin", auth.RequireUser(h.JWT), auth.RequireAdmin())
	group.GET("/accounts", h.listAccounts)
	group.GET("/accounts/:id/details", h.accountDetails)
	group.POST("/accounts/:id/status", h.setAccountStatus)
	group.POST("/accounts/:id/evaluate", h.evaluateAccount)
	group.GET("/withdrawals", h.listWithdrawals)
	group.POST("/withdrawals/:id/status", h.setWithdrawalStatus)
	group.POST("/evaluate", h.evaluateAll)
	group.GET("/logs", h.listLogs)
	group.GET("/analytics", h.analytics)
	group.GET("/switches", h.listSwitches)
	group.PUT("/switches/:name", h.putSwitch)
}

// @Summary List accounts
// @Tags admin
// @Security BearerAuth
// @Param status query string false "active|failed|funded|pending"
// @Param challenge_type query string false "challenge type"
// @Param user_id query int false "owner"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Param order_by query string false "id|created_at|equity|balance|status"
// @Param asc query bool false "ascending order"
// @Success 200 {object} apiResponse
// @Router /api/admin/accounts [get]
func (h *AdminHandler) listAccounts(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAccountsParams{
		Limit:         limit,
		Offset:        offset,
		Status:        stringQueryPtr(c, "status"),
		ChallengeType: stringQueryPtr(c, "challenge_type"),
		UserID:        uint64QueryPtr(c, "user_id"),
		OrderBy:       parseOrder(c.Query("order_by"), accountOrderColumns),
	}
	if c.Query("asc") == "true" {
		params.Asc = boolPtr(true)
	}
	items, total, err := h.Service.AdminAccounts(c.Request.Context(), params)
	if err != nil {
		fail(c, h.Logger, "admin list accounts", err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Override an account's status
// @Tags admin
// @Security BearerAuth
// @Param id path int true "account id"
// @Param body body statusRequest true "new status"
// @Success 200 {object} apiResponse
// @Router /api/admin/accounts/{id}/status [post]
func (h *AdminHandler) setAccountStatus(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	claims, _ := auth.ClaimsFromContext(c)
	out, err := h.Service.SetAccountStatus(c.Request.Context(), claims.UserID, id, req.Status)
	if err != nil {
		fail(c, h.Logger, "set account status", err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Evaluate one account against the challenge rules
// @Tags admin
// @Security BearerAuth
// @Param id path int true "account id"
// @Success 200 {object} apiResponse
// @Router /api/admin/accounts/{id}/evaluate [post]
func (h *AdminHandler) evaluateAccount(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	t, err := h.Engine.EvaluateAccount(c.Request.Context(), id)
	if err != nil {
		fail(c, h.Logger, "evaluate account", err)
		return
	}
	Ok(c, gin.H{
		"account_id": t.AccountID,
		"from":       t.From,
		"to":         t.To,
		"changed":    t.Changed(),
	}, nil)
}

// @Summary Evaluate every active account
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} apiResponse
// @Router /api/admin/evaluate [post]
func (h *AdminHandler) evaluateAll(c *gin.Context) {
	summary, err := h.Engine.EvaluateAllActive(c.Request.Context())
	data := gin.H{
		"evaluated": summary.Evaluated,
		"failed":    summary.Failed,
		"funded":    summary.Funded,
		"errors":    summary.Errors,
	}
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("admin evaluation finished with errors", zap.Error(err))
		}
		if summary.Evaluated == 0 && summary.Errors == 0 {
			fail(c, h.Logger, "evaluate all", err)
			return
		}
	}
	Ok(c, data, nil)
}

// @Summary List withdrawals
// @Tags admin
// @Security BearerAuth
// @Param status query string false "pending|approved|rejected|paid"
// @Param account_id query int false "account id"
// @Param since query string false "RFC3339 or YYYY-MM-DD"
// @Param until query string false "RFC3339 or YYYY-MM-DD"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/admin/withdrawals [get]
func (h *AdminHandler) listWithdrawals(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListWithdrawalsParams{
		Limit:     limit,
		Offset:    offset,
		Status:    stringQueryPtr(c, "status"),
		AccountID: uint64QueryPtr(c, "account_id"),
		Since:     timeQueryPtr(c, "since"),
		Until:     timeQueryPtr(c, "until"),
	}
	items, total, err := h.Service.AdminWithdrawals(c.Request.Context(), params)
	if err != nil {
		fail(c, h.Logger, "admin list withdrawals", err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Update a withdrawal's status
// @Tags admin
// @Security BearerAuth
// @Param id path int true "withdrawal id"
// @Param body body statusRequest true "new status"
// @Success 200 {object} apiResponse
// @Router /api/admin/withdrawals/{id}/status [post]
func (h *AdminHandler) setWithdrawalStatus(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	claims, _ := auth.ClaimsFromContext(c)
	out, err := h.Service.UpdateWithdrawalStatus(c.Request.Context(), claims.UserID, id, req.Status)
	if err != nil {
		fail(c, h.Logger, "update withdrawal status", err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Admin audit log
// @Tags admin
// @Security BearerAuth
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/admin/logs [get]
func (h *AdminHandler) listLogs(c *gin.Context) {
	items, err := h.Service.AuditLog(c.Request.Context(), intQuery(c, "limit", 100), intQuery(c, "offset", 0))
	if err != nil {
		fail(c, h.Logger, "audit log", err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Account with owner, positions and recent trades
// @Tags admin
// @Security BearerAuth
// @Param id path int true "account id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/admin/accounts/{id}/details [get]
func (h *AdminHandler) accountDetails(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	out, err := h.Service.AccountDetails(c.Request.Context(), id)
	if err != nil {
		fail(c, h.Logger, "account details", err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Challenge KPIs and time series
// @Tags admin
// @Security BearerAuth
// @Param range query string false "today|7d|30d|90d"
// @Param date_from query string false "RFC3339 or YYYY-MM-DD"
// @Param date_to query string false "RFC3339 or YYYY-MM-DD"
// @Param challenge_type query string false "challenge type"
// @Param status query string false "active|failed|funded|pending"
// @Success 200 {object} apiResponse
// @Router /api/admin/analytics [get]
func (h *AdminHandler) analytics(c *gin.Context) {
	out, err := h.Service.Analytics(c.Request.Context(), service.AnalyticsQuery{
		Range:         c.DefaultQuery("range", "7d"),
		From:          timeQueryPtr(c, "date_from"),
		To:            timeQueryPtr(c, "date_to"),
		ChallengeType: stringQueryPtr(c, "challenge_type"),
		Status:        stringQueryPtr(c, "status"),
	})
	if err != nil {
		fail(c, h.Logger, "analytics", err)
		return
	}
	Ok(c, out, nil)
}
