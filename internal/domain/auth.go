package domain

import "time"

// User is an archive-core principal (§3).
type User struct {
	UserID         string            `json:"user_id"`
	Username       string            `json:"username"`
	PasswordHash   string            `json:"-"`
	PasswordSalt   string            `json:"-"`
	Department     string            `json:"department"`
	ClearanceLevel Confidentiality   `json:"clearance_level"`
	Roles          []Role            `json:"roles"`
	Email          string            `json:"email,omitempty"`
	Enabled        bool              `json:"enabled"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	FailedLogins   int               `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(r Role) bool {
	for _, role := range u.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// IsAdmin reports administrator membership, short for HasRole(RoleAdmin).
func (u *User) IsAdmin() bool { return u.HasRole(RoleAdmin) }

// Session is a minted, opaque server-side login record (§3).
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	SourceIP  string    `json:"source_ip"`
	UserAgent string    `json:"user_agent"`
}

// Expired reports whether the session is no longer valid at t.
func (s *Session) Expired(t time.Time) bool { return t.After(s.ExpiresAt) }

// AuditEvent is an append-only record of an authentication event or a
// protected resource access (§3).
type AuditEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	UserID       string            `json:"user_id"`
	Username     string            `json:"username"`
	Action       AuditAction       `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Allowed      bool              `json:"allowed"`
	IPAddress    string            `json:"ip_address"`
	SessionID    string            `json:"session_id,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// HookDeliveryParams carries the mechanism-specific delivery
// configuration for a HookRegistration.
type HookDeliveryParams struct {
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	FilePath string           `json:"file_path,omitempty"`
	Format   string           `json:"format,omitempty"` // "json" or "text"
}

// HookRegistration is a registered integration hook (§3, §4.7).
type HookRegistration struct {
	Name        string              `json:"name"`
	Type        HookType            `json:"type"`
	Delivery    HookDeliveryParams  `json:"delivery"`
	EventFilter []HookEvent         `json:"event_filter"`
	RetryCount  int                 `json:"retry_count"`
	Timeout     time.Duration       `json:"timeout"`
}

// Matches reports whether the registration is interested in event.
func (h HookRegistration) Matches(event HookEvent) bool {
	for _, e := range h.EventFilter {
		if e == event {
			return true
		}
	}
	return false
}

// HookExecution is the record emitted per hook fire (§3).
type HookExecution struct {
	HookName      string        `json:"hook_name"`
	Event         HookEvent     `json:"event"`
	ObjectKey     string        `json:"object_key,omitempty"`
	Success       bool          `json:"success"`
	ExecutionTime time.Duration `json:"execution_time"`
	Response      string        `json:"response,omitempty"`
	Error         string        `json:"error,omitempty"`
	FiredAt       time.Time     `json:"fired_at"`
}
