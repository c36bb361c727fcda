package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesense/internal/auth"
	"tradesense/internal/challenge"
	"tradesense/internal/marketdata"
	"tradesense/internal/service"
)

// errorStatus maps domain errors to HTTP statuses. Anything unrecognised is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, challenge.ErrAccountNotFound), errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, challenge.ErrAccountNotTradable), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, challenge.ErrInvalidOrder),
		errors.Is(err, challenge.ErrInsufficientBalance),
		errors.Is(err, service.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict
	case auth.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, marketdata.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes the error envelope. Server-side failures are logged and their detail
// is not echoed to the caller.
func fail(c *gin.Context, logger *zap.Logger, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error(op+" failed", zap.Error(err), zap.String("path", c.FullPath()))
		}
		if status == http.StatusServiceUnavailable {
			Error(c, status, err.Error(), nil)
			return
		}
		Error(c, status, "internal error", nil)
		return
	}
	Error(c, status, err.Error(), nil)
}

// callerMayAccess allows admins everywhere and users on their own resources.
func callerMayAccess(c *gin.Context, ownerID uint64) bool {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return false
	}
	return claims.IsAdmin || claims.UserID == ownerID
}
