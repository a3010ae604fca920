package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"archivecore.io/core/internal/domain"
)

const bearerPrefix = "Bearer "

// ctxSession and ctxUser are the echo.Context keys under which the
// authenticated session and user are stashed by RequireAuth for
// handlers to read.
const (
	ctxSession = "session"
	ctxUser    = "user"
)

// RequireAuth resolves the request's bearer token to a session and
// user via authSvc.Authenticate, rejecting with domain.ErrUnauthenticated
// when absent or invalid (§6 request authentication).
func (s *Server) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			return domain.ErrUnauthenticated
		}
		token := strings.TrimPrefix(header, bearerPrefix)

		sess, user, err := s.authSvc.Authenticate(token)
		if err != nil {
			return err
		}
		c.Set(ctxSession, sess)
		c.Set(ctxUser, user)
		return next(c)
	}
}

func sessionUser(c echo.Context) domain.User {
	u, _ := c.Get(ctxUser).(domain.User)
	return u
}

func currentSession(c echo.Context) domain.Session {
	s, _ := c.Get(ctxSession).(domain.Session)
	return s
}

// backstopRetryAfter is reported when the local token bucket (which
// carries no duration of its own) denies a request; the bucket refills
// continuously so one second is always a safe minimum wait.
const backstopRetryAfter = 1 * time.Second

// setRetryAfter sets the Retry-After header to the ceiling of d in
// whole seconds, never below 1 (§4.6 Login rate limit scenario 4).
func setRetryAfter(c echo.Context, d time.Duration) {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
}

// LoginRateLimit enforces the backstop token bucket and the Redis-backed
// 5/min/IP login cap ahead of the login handler (§4.6 Login rate limit).
func (s *Server) LoginRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if s.backstop != nil && !s.backstop.Allow(ip) {
			setRetryAfter(c, backstopRetryAfter)
			return domain.ErrRateLimited
		}
		if s.loginLimiter != nil {
			if retryAfter, err := s.loginLimiter.CheckLogin(c.Request().Context(), ip); err != nil {
				setRetryAfter(c, retryAfter)
				return err
			}
		}
		return next(c)
	}
}

// GlobalRateLimit enforces the default per-IP hourly/daily request
// caps on every authenticated route (§9 Global defaults).
func (s *Server) GlobalRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.loginLimiter != nil {
			if retryAfter, err := s.loginLimiter.CheckGlobal(c.Request().Context(), c.RealIP()); err != nil {
				setRetryAfter(c, retryAfter)
				return err
			}
		}
		return next(c)
	}
}
