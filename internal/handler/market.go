package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"tradesense/internal/marketdata"
)

type MarketSource interface {
	Overview(ctx context.Context) (marketdata.Snapshot, error)
	Quote(ctx context.Context, symbol string) (marketdata.Quote, error)
}

type MarketHandler struct {
	Service        MarketSource
	StreamInterval time.Duration
	// OriginPatterns are passed to the websocket handshake; empty means same-origin only.
	OriginPatterns []string
	Logger         *zap.Logger
}

func (h *MarketHandler) Register(r *gin.Engine) {
	group := r.Group("/api/market")
	group.GET("/overview", h.overview)
	group.GET("/quotes/:symbol", h.quote)
	group.GET("/stream", h.stream)
}

// @Summary Market overview
// @Tags market
// @Success 200 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/market/overview [get]
func (h *MarketHandler) overview(c *gin.Context) {
	snap, err := h.Service.Overview(c.Request.Context())
	if err != nil {
		fail(c, h.Logger, "market overview", err)
		return
	}
	Ok(c, snap, map[string]any{"stale": snap.Stale})
}

// @Summary Latest quote for one symbol
// @Tags market
// @Param symbol path string true "symbol, e.g. BTC-USD"
// @Success 200 {object} apiResponse
// @Router /api/market/quotes/{symbol} [get]
func (h *MarketHandler) quote(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "missing symbol", nil)
		return
	}
	q, err := h.Service.Quote(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnavailable) {
			Error(c, http.StatusNotFound, "quote not available for "+symbol, nil)
			return
		}
		fail(c, h.Logger, "market quote", err)
		return
	}
	Ok(c, q, nil)
}

// stream pushes the overview to a websocket client every StreamInterval until the
// client goes away.
func (h *MarketHandler) stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("market stream accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := conn.CloseRead(c.Request.Context())
	interval := h.StreamInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := h.push(ctx, conn); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil && h.Logger != nil {
				h.Logger.Debug("market stream write failed", zap.Error(err))
			}
			return
		}
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func (h *MarketHandler) push(ctx context.Context, conn *websocket.Conn) error {
	snap, err := h.Service.Overview(ctx)
	if err != nil {
		if !errors.Is(err, marketdata.ErrUnavailable) {
			return err
		}
		snap = marketdata.Snapshot{Quotes: []marketdata.Quote{}, Stale: true}
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, snap)
}
