package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesense/internal/auth"
	"tradesense/internal/challenge"
	"tradesense/internal/marketdata"
	"tradesense/internal/service"
)

type TradeExecutor interface {
	ProcessTrade(ctx context.Context, o challenge.Order) (challenge.TradeResult, error)
}

type AccountLookup interface {
	Account(ctx context.Context, accountID uint64) (service.AccountView, error)
}

type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (marketdata.Quote, error)
}

type TradeHandler struct {
	Engine   TradeExecutor
	Accounts AccountLookup
	// Market fills the price of orders sent without one. Carried-over quotes are
	// refused. Optional.
	Market   QuoteSource
	Switches FeatureGate
	JWT      auth.JWT
	Logger   *zap.Logger
}

type tradeRequest struct {
	AccountID  uint64           `json:"account_id" binding:"required"`
	Asset      string           `json:"asset" binding:"required"`
	Side       string           `json:"side" binding:"required,side"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Price      *decimal.Decimal `json:"price"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
}

type tradeResponse struct {
	TradeID uint64          `json:"trade_id"`
	Profit  decimal.Decimal `json:"profit"`
	Equity  decimal.Decimal `json:"equity"`
	Status  string          `json:"status"`
	Price   decimal.Decimal `json:"price"`
}

func (h *TradeHandler) Register(r *gin.Engine) {
	r.POST("/api/trade", auth.RequireUser(h.JWT), h.trade)
}

// @Summary Execute a simulated trade
// @Tags trading
// @Security BearerAuth
// @Accept json
// @Param body body tradeRequest true "order"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/trade [post]
func (h *TradeHandler) trade(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if paused(c, h.Switches, service.FeatureTrading, "Trading is paused") {
		return
	}
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	ctx := c.Request.Context()

	if h.Accounts != nil {
		acct, err := h.Accounts.Account(ctx, req.AccountID)
		if err != nil {
			fail(c, h.Logger, "load account", err)
			return
		}
		if !callerMayAccess(c, acct.UserID) {
			Error(c, http.StatusForbidden, "forbidden", nil)
			return
		}
	}

	price := decimal.Zero
	if req.Price != nil {
		price = *req.Price
	}
	if price.IsZero() && h.Market != nil {
		q, err := h.Market.Quote(ctx, req.Asset)
		if err != nil {
			fail(c, h.Logger, "quote "+req.Asset, err)
			return
		}
		if q.Stale {
			fail(c, h.Logger, "quote "+req.Asset, marketdata.ErrStaleQuote)
			return
		}
		price = q.Price
	}

	res, err := h.Engine.ProcessTrade(ctx, challenge.Order{
		AccountID:  req.AccountID,
		Asset:      req.Asset,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      price,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
	})
	if err != nil {
		fail(c, h.Logger, "process trade", err)
		return
	}
	Ok(c, tradeResponse{
		TradeID: res.TradeID,
		Profit:  res.Profit,
		Equity:  res.Equity,
		Status:  res.Status,
		Price:   price,
	}, nil)
}
