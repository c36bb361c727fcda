package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesense/internal/auth"
	"tradesense/internal/service"
)

// Authenticator is the account sign-up and sign-in surface.
type Authenticator interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Refresh(ctx context.Context, claims auth.Claims) (auth.Session, error)
}

type AuthHandler struct {
	Service  Authenticator
	Switches FeatureGate
	JWT      auth.JWT
	Logger   *zap.Logger
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	AccountType string `json:"account_type"`
	Plan        string `json:"plan"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(r *gin.Engine) {
	group := r.Group("/api/auth")
	group.POST("/register", h.register)
	group.POST("/login", h.login)
	group.GET("/keep-alive", auth.RequireUser(h.JWT), h.keepAlive)
}

// @Summary Register a user
// @Tags auth
// @Accept json
// @Param body body registerRequest true "registration"
// @Success 200 {object} apiResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if paused(c, h.Switches, service.FeatureRegistration, "Registration is closed") {
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	session, err := h.Service.Register(c.Request.Context(), auth.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		AccountType: req.AccountType,
		Plan:        req.Plan,
	})
	if err != nil {
		fail(c, h.Logger, "register", err)
		return
	}
	Ok(c, session, nil)
}

// @Summary Log in
// @Tags auth
// @Accept json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} apiResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, bindMessage(err), nil)
		return
	}
	session, err := h.Service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.Logger, "login", err)
		return
	}
	Ok(c, session, nil)
}

// @Summary Refresh the access token
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} apiResponse
// @Router /api/auth/keep-alive [get]
func (h *AuthHandler) keepAlive(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok || h.Service == nil {
		Error(c, http.StatusUnauthorized, "missing bearer token", nil)
		return
	}
	session, err := h.Service.Refresh(c.Request.Context(), claims)
	if err != nil {
		fail(c, h.Logger, "keep-alive", err)
		return
	}
	Ok(c, session, nil)
}
