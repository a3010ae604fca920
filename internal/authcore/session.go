package authcore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"archivecore.io/core/internal/domain"
)

// SessionTTL is the fixed lifetime of a minted session (§4.6 Sessions).
const SessionTTL = 24 * time.Hour

// sessionTokenBytes matches the teacher's generateRefreshToken (32
// random bytes, URL-safe base64), reused here for session tokens
// rather than refresh tokens.
const sessionTokenBytes = 32

func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// SessionStore is a map from opaque token to Session. Writes are
// serialised under a mutex; reads take a lock-free snapshot (§5 Shared
// resources, Session store) by swapping an immutable map via
// atomic.Value rather than holding a read lock for the map lookup.
type SessionStore struct {
	mu   sync.Mutex
	snap atomic.Value // map[string]domain.Session
}

// NewSessionStore returns an empty store ready for use.
func NewSessionStore() *SessionStore {
	s := &SessionStore{}
	s.snap.Store(map[string]domain.Session{})
	return s
}

func (s *SessionStore) current() map[string]domain.Session {
	return s.snap.Load().(map[string]domain.Session)
}

// Put inserts or replaces a session. Callers hold no external lock;
// the mutex here only orders concurrent writers against each other.
func (s *SessionStore) Put(sess domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.current()
	next := make(map[string]domain.Session, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[sess.SessionID] = sess
	s.snap.Store(next)
}

// Get returns the session for token, if present and unexpired.
func (s *SessionStore) Get(token string, now time.Time) (domain.Session, bool) {
	sess, ok := s.current()[token]
	if !ok || sess.Expired(now) {
		return domain.Session{}, false
	}
	return sess, true
}

// Revoke removes a session, e.g. on logout.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.current()
	if _, ok := old[token]; !ok {
		return
	}
	next := make(map[string]domain.Session, len(old))
	for k, v := range old {
		if k != token {
			next[k] = v
		}
	}
	s.snap.Store(next)
}

// RevokeAllForUser revokes every session belonging to userID, used on
// password change or administrative lockout.
func (s *SessionStore) RevokeAllForUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.current()
	next := make(map[string]domain.Session, len(old))
	for k, v := range old {
		if v.UserID != userID {
			next[k] = v
		}
	}
	s.snap.Store(next)
}

// Sweep drops every expired session and reports how many were removed.
// Intended to run periodically from a background goroutine.
func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.current()
	next := make(map[string]domain.Session, len(old))
	removed := 0
	for k, v := range old {
		if v.Expired(now) {
			removed++
			continue
		}
		next[k] = v
	}
	s.snap.Store(next)
	return removed
}

// Mint creates and stores a new session for user, associating the
// request's source IP and user agent.
func (s *SessionStore) Mint(user domain.User, sourceIP, userAgent string, now time.Time) (domain.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return domain.Session{}, err
	}
	sess := domain.Session{
		SessionID: token,
		UserID:    user.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
		SourceIP:  sourceIP,
		UserAgent: userAgent,
	}
	s.Put(sess)
	return sess, nil
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				s.Sweep(t)
			}
		}
	}()
}
