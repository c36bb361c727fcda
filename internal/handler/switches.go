package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradesense/internal/service"
)

// FeatureGate answers whether a runtime switch is on.
type FeatureGate interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

type SwitchAdmin interface {
	Switches(ctx context.Context) ([]service.Switch, error)
	SetEnabled(ctx context.Context, name string, enabled bool) (service.Switch, error)
}

// paused writes a 503 and returns true when the switch is off. A nil gate never pauses.
func paused(c *gin.Context, gate FeatureGate, key, message string) bool {
	if gate == nil || gate.IsEnabled(c.Request.Context(), key, true) {
		return false
	}
	Error(c, http.StatusServiceUnavailable, message, map[string]any{"switch": key})
	return true
}

type switchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// @Summary List feature switches
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} apiResponse
// @Router /api/admin/switches [get]
func (h *AdminHandler) listSwitches(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	items, err := h.Settings.Switches(c.Request.Context())
	if err != nil {
		fail(c, h.Logger, "list switches", err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Turn a feature switch on or off
// @Tags admin
// @Security BearerAuth
// @Param name path string true "switch name, e.g. trading"
// @Param body body switchRequest true "state"
// @Success 200 {object} apiResponse
// @Router /api/admin/switches/{name} [put]
func (h *AdminHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	sw, err := h.Settings.SetEnabled(c.Request.Context(), c.Param("name"), *req.Enabled)
	if err != nil {
		fail(c, h.Logger, "set switch", err)
		return
	}
	Ok(c, sw, nil)
}
