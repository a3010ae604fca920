package authcore

import (
	"context"
	"fmt"
	"time"

	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/obs"
)

// UserStore persists User records, mirroring the teacher's UserStore
// boundary (auth/storage.go) narrowed to the fields this service uses.
type UserStore interface {
	GetUser(userID string) (domain.User, error)
	GetUserByUsername(username string) (domain.User, error)
	CreateUser(u domain.User) error
	UpdateUser(u domain.User) error
}

// AuditSink records AuditEvents. *metadb.DB satisfies this directly
// via InsertAudit.
type AuditSink interface {
	InsertAudit(e domain.AuditEvent) error
}

// Service is the authorisation core: login, session validation, ABAC
// access checks, PII-driven escalation and audit emission, composed
// the way the teacher's authService composes TokenService + UserStore
// (auth/auth.go), with JWTs replaced by opaque server-side sessions
// per §4.6.
type Service struct {
	store    UserStore
	sessions *SessionStore
	policy   *Policy
	audit    AuditSink
	logger   *obs.ContextLogger

	requireStrongPasswords bool
}

// New builds a Service. audit may be nil to disable audit emission
// (e.g. in tests exercising policy logic in isolation).
func New(store UserStore, sessions *SessionStore, audit AuditSink, logger *obs.ContextLogger) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		policy:   NewPolicy(),
		audit:    audit,
		logger:   logger,
	}
}

// Login verifies credentials and mints a session on success (§4.6
// Sessions). Every attempt, successful or not, is audited.
func (s *Service) Login(ctx context.Context, username, password, sourceIP, userAgent string) (domain.Session, domain.User, error) {
	now := time.Now()
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		s.recordAudit(domain.AuditEvent{Timestamp: now, Username: username, Action: domain.ActionView,
			ResourceType: "session", Allowed: false, IPAddress: sourceIP, UserAgent: userAgent,
			Metadata: map[string]string{"reason": "user_not_found"}})
		return domain.Session{}, domain.User{}, domain.ErrInvalidCredentials
	}

	if !user.Enabled {
		s.recordAudit(domain.AuditEvent{Timestamp: now, UserID: user.UserID, Username: username, Action: domain.ActionView,
			ResourceType: "session", Allowed: false, IPAddress: sourceIP, UserAgent: userAgent,
			Metadata: map[string]string{"reason": "account_disabled"}})
		return domain.Session{}, domain.User{}, domain.ErrAccountDisabled
	}

	if err := ValidatePassword(password, user.PasswordHash); err != nil {
		user.FailedLogins++
		user.UpdatedAt = now
		_ = s.store.UpdateUser(user)
		s.recordAudit(domain.AuditEvent{Timestamp: now, UserID: user.UserID, Username: username, Action: domain.ActionView,
			ResourceType: "session", Allowed: false, IPAddress: sourceIP, UserAgent: userAgent,
			Metadata: map[string]string{"reason": "invalid_password"}})
		return domain.Session{}, domain.User{}, domain.ErrInvalidCredentials
	}

	sess, err := s.sessions.Mint(user, sourceIP, userAgent, now)
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("mint session: %w", err)
	}

	user.FailedLogins = 0
	user.UpdatedAt = now
	_ = s.store.UpdateUser(user)

	s.recordAudit(domain.AuditEvent{Timestamp: now, UserID: user.UserID, Username: username, Action: domain.ActionView,
		ResourceType: "session", ResourceID: sess.SessionID, Allowed: true, IPAddress: sourceIP,
		UserAgent: userAgent, SessionID: sess.SessionID})

	return sess, user, nil
}

// Logout revokes the session identified by token.
func (s *Service) Logout(token string) {
	s.sessions.Revoke(token)
}

// Authenticate resolves a bearer token to its session and owning user,
// or domain.ErrUnauthenticated on any failure, whether the token is
// unknown, expired or revoked (§4.6 Sessions, §6 request authentication).
func (s *Service) Authenticate(token string) (domain.Session, domain.User, error) {
	sess, ok := s.sessions.Get(token, time.Now())
	if !ok {
		return domain.Session{}, domain.User{}, domain.ErrUnauthenticated
	}
	user, err := s.store.GetUser(sess.UserID)
	if err != nil {
		return domain.Session{}, domain.User{}, domain.ErrUnauthenticated
	}
	return sess, user, nil
}

// Authorize evaluates the ABAC policy for user against a page and
// emits an audit event recording the verdict.
func (s *Service) Authorize(ctx context.Context, sess domain.Session, user domain.User, page domain.Page, action domain.AuditAction) Decision {
	dec := s.policy.Evaluate(user, ResourceFromPage(page))
	s.recordAudit(domain.AuditEvent{
		Timestamp:    time.Now(),
		UserID:       user.UserID,
		Username:     user.Username,
		Action:       action,
		ResourceType: "page",
		ResourceID:   page.PageID,
		Allowed:      dec.Allowed,
		IPAddress:    sess.SourceIP,
		SessionID:    sess.SessionID,
		UserAgent:    sess.UserAgent,
		Metadata:     map[string]string{"reason": dec.Reason},
	})
	return dec
}

// ScanAndEscalate runs PII detection over page's OCR text and applies
// confidentiality escalation in place, returning whatever matches were
// found (§4.6 Confidentiality escalation from PII).
func (s *Service) ScanAndEscalate(page *domain.Page) []PIIMatch {
	matches := ScanText(page.OCRText)
	if Escalate(page, matches) {
		s.logger.WithField("page_id", page.PageID).
			WithField("level", int(page.Confidentiality)).
			Info("confidentiality escalated by pii detection")
	}
	return matches
}

func (s *Service) recordAudit(e domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.InsertAudit(e); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
}
