package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/authcore"
	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/obs"
	"archivecore.io/core/internal/ratelimit"
)

type fakeUserStore struct {
	users map[string]domain.User
}

func (s *fakeUserStore) GetUser(userID string) (domain.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetUserByUsername(username string) (domain.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *fakeUserStore) CreateUser(u domain.User) error {
	s.users[u.UserID] = u
	return nil
}

func (s *fakeUserStore) UpdateUser(u domain.User) error {
	s.users[u.UserID] = u
	return nil
}

func newTestAuthServer(t *testing.T) (*Server, *fakeUserStore, domain.Session) {
	t.Helper()
	store := &fakeUserStore{users: map[string]domain.User{
		"u1": {UserID: "u1", Username: "alice", Enabled: true, Roles: []domain.Role{domain.RoleOperator}},
	}}
	sessions := authcore.NewSessionStore()
	svc := authcore.New(store, sessions, nil, obs.New(nil))

	sess, err := sessions.Mint(store.users["u1"], "127.0.0.1", "test-agent", time.Now())
	require.NoError(t, err)

	return &Server{authSvc: svc}, store, sess
}

func TestRequireAuthRejectsMissingBearerHeader(t *testing.T) {
	s, _, _ := newTestAuthServer(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := s.RequireAuth(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := handler(c)

	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRequireAuthAcceptsValidBearerToken(t *testing.T) {
	s, _, sess := newTestAuthServer(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.SessionID)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUser domain.User
	handler := s.RequireAuth(func(c echo.Context) error {
		gotUser = sessionUser(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, "alice", gotUser.Username)
}

func TestRequireAuthRejectsUnknownToken(t *testing.T) {
	s, _, _ := newTestAuthServer(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := s.RequireAuth(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := handler(c)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestLoginRateLimitPassesThroughWithNoLimiterConfigured(t *testing.T) {
	s := &Server{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := s.LoginRateLimit(func(c echo.Context) error { called = true; return nil })
	require.NoError(t, handler(c))
	assert.True(t, called)
}

func TestLoginRateLimitSetsRetryAfterWhenBackstopDenies(t *testing.T) {
	backstop := ratelimit.NewBackstop(0, 0)
	s := &Server{backstop: backstop}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := s.LoginRateLimit(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := handler(c)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
