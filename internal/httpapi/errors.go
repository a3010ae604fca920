package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/obs"
)

// ErrorResponse is the {error, code} body shape required of every
// failed request (§7).
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type statusCode struct {
	status int
	code   string
}

var sentinelTable = []struct {
	err error
	sc  statusCode
}{
	{domain.ErrValidation, statusCode{http.StatusBadRequest, "validation_failed"}},
	{domain.ErrWeakPassword, statusCode{http.StatusBadRequest, "weak_password"}},
	{domain.ErrUnauthenticated, statusCode{http.StatusUnauthorized, "unauthenticated"}},
	{domain.ErrSessionExpired, statusCode{http.StatusUnauthorized, "session_expired"}},
	{domain.ErrInvalidCredentials, statusCode{http.StatusUnauthorized, "invalid_credentials"}},
	{domain.ErrForbidden, statusCode{http.StatusForbidden, "forbidden"}},
	{domain.ErrAccountDisabled, statusCode{http.StatusForbidden, "account_disabled"}},
	{domain.ErrNotFound, statusCode{http.StatusNotFound, "not_found"}},
	{domain.ErrConflict, statusCode{http.StatusConflict, "conflict"}},
	{domain.ErrUserExists, statusCode{http.StatusConflict, "user_exists"}},
	{domain.ErrLockConflict, statusCode{http.StatusConflict, "lock_conflict"}},
	{domain.ErrBatchNotReady, statusCode{http.StatusConflict, "batch_not_ready"}},
	{domain.ErrIdempotencyViolation, statusCode{http.StatusConflict, "idempotency_violation"}},
	{domain.ErrRateLimited, statusCode{http.StatusTooManyRequests, "rate_limited"}},
	{domain.ErrIntegrity, statusCode{http.StatusInternalServerError, "integrity_violation"}},
	{domain.ErrBackendUnavailable, statusCode{http.StatusServiceUnavailable, "backend_unavailable"}},
}

func classify(err error) statusCode {
	for _, e := range sentinelTable {
		if errors.Is(err, e.err) {
			return e.sc
		}
	}
	return statusCode{http.StatusInternalServerError, "internal_error"}
}

// ErrorHandler is the Echo HTTPErrorHandler translating domain
// sentinel errors and echo.HTTPError into the {error, code} shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		_ = c.JSON(he.Code, ErrorResponse{Error: msg, Code: "http_error"})
		return
	}

	sc := classify(err)
	if sc.status >= http.StatusInternalServerError {
		obs.Logger.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
	}
	_ = c.JSON(sc.status, ErrorResponse{Error: err.Error(), Code: sc.code})
}
