package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/domain"
)

func TestClassifyMapsSentinelErrorsToStatusAndCode(t *testing.T) {
	cases := []struct {
		err            error
		wantStatus     int
		wantCode       string
	}{
		{domain.ErrValidation, http.StatusBadRequest, "validation_failed"},
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrLockConflict, http.StatusConflict, "lock_conflict"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{domain.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"},
		{errors.New("unmapped"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		sc := classify(tc.err)
		assert.Equal(t, tc.wantStatus, sc.status, tc.err.Error())
		assert.Equal(t, tc.wantCode, sc.code, tc.err.Error())
	}
}

func TestClassifyUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("submit failed: %w", domain.ErrLockConflict)
	sc := classify(wrapped)
	assert.Equal(t, http.StatusConflict, sc.status)
}

func TestErrorHandlerWritesErrorCodeShape(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(domain.ErrNotFound, c)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Code)
}

func TestErrorHandlerPassesThroughHTTPError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(echo.NewHTTPError(http.StatusBadRequest, "bad input"), c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad input", body.Error)
}
