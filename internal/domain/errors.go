package domain

import "errors"

// Sentinel errors shared across subsystems, mapped to the HTTP error
// taxonomy (§7) at the httpapi boundary.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("conflict")
	ErrLockConflict       = errors.New("lock_conflict")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("access denied")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrIntegrity          = errors.New("data integrity violation")
	ErrBatchNotReady      = errors.New("batch_not_ready")
	ErrIdempotencyViolation = errors.New("idempotency violation")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUserExists         = errors.New("user already exists")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
)
