package authcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/domain"
)

func TestMintAndGetRoundTrip(t *testing.T) {
	store := NewSessionStore()
	user := domain.User{UserID: "u1"}
	now := time.Now()

	sess, err := store.Mint(user, "10.0.0.1", "test-agent", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, now.Add(SessionTTL), sess.ExpiresAt)

	got, ok := store.Get(sess.SessionID, now)
	require.True(t, ok)
	assert.Equal(t, sess, got)
}

func TestGetReturnsFalseForExpiredSession(t *testing.T) {
	store := NewSessionStore()
	now := time.Now()
	sess, err := store.Mint(domain.User{UserID: "u1"}, "10.0.0.1", "agent", now)
	require.NoError(t, err)

	_, ok := store.Get(sess.SessionID, now.Add(SessionTTL+time.Second))
	assert.False(t, ok)
}

func TestRevokeRemovesSession(t *testing.T) {
	store := NewSessionStore()
	now := time.Now()
	sess, err := store.Mint(domain.User{UserID: "u1"}, "ip", "agent", now)
	require.NoError(t, err)

	store.Revoke(sess.SessionID)
	_, ok := store.Get(sess.SessionID, now)
	assert.False(t, ok)
}

func TestRevokeAllForUserOnlyTouchesThatUser(t *testing.T) {
	store := NewSessionStore()
	now := time.Now()
	s1, _ := store.Mint(domain.User{UserID: "u1"}, "ip", "agent", now)
	s2, _ := store.Mint(domain.User{UserID: "u2"}, "ip", "agent", now)

	store.RevokeAllForUser("u1")

	_, ok1 := store.Get(s1.SessionID, now)
	_, ok2 := store.Get(s2.SessionID, now)
	assert.False(t, ok1)
	assert.True(t, ok2)
}

func TestSweepRemovesOnlyExpiredSessions(t *testing.T) {
	store := NewSessionStore()
	now := time.Now()
	fresh, _ := store.Mint(domain.User{UserID: "u1"}, "ip", "agent", now)
	stale, _ := store.Mint(domain.User{UserID: "u2"}, "ip", "agent", now.Add(-SessionTTL-time.Minute))

	removed := store.Sweep(now)
	assert.Equal(t, 1, removed)

	_, freshOK := store.Get(fresh.SessionID, now)
	_, staleOK := store.Get(stale.SessionID, now)
	assert.True(t, freshOK)
	assert.False(t, staleOK)
}
