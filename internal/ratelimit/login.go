package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"archivecore.io/core/internal/domain"
)

// Default caps from §4.6 Login rate limit / §9 Global defaults.
const (
	LoginLimit  = 5
	LoginWindow = time.Minute

	HourlyLimit  = 50
	HourlyWindow = time.Hour

	DailyLimit  = 200
	DailyWindow = 24 * time.Hour
)

// LoginLimiter enforces the login-attempt cap and the global per-IP
// hourly/daily request caps, each tracked in its own sliding window so
// one does not starve the others' accounting.
type LoginLimiter struct {
	login  *SlidingWindow
	hourly *SlidingWindow
	daily  *SlidingWindow
}

// NewLoginLimiter builds the three sliding windows over a shared Redis
// client, one keyspace per cap.
func NewLoginLimiter(client *redis.Client) *LoginLimiter {
	return &LoginLimiter{
		login:  New(client, "ratelimit:login:"),
		hourly: New(client, "ratelimit:hourly:"),
		daily:  New(client, "ratelimit:daily:"),
	}
}

// CheckLogin enforces the 5-per-minute login cap for sourceIP. A
// denied attempt returns domain.ErrRateLimited and how long to wait.
func (l *LoginLimiter) CheckLogin(ctx context.Context, sourceIP string) (time.Duration, error) {
	ok, retryAfter, err := l.login.Allow(ctx, sourceIP, LoginLimit, LoginWindow)
	if err != nil {
		return 0, err
	}
	if !ok {
		return retryAfter, domain.ErrRateLimited
	}
	return 0, nil
}

// CheckGlobal enforces the default 50/hour and 200/day per-IP request
// caps, evaluating the tighter (hourly) window first so its
// Retry-After is reported when both would deny.
func (l *LoginLimiter) CheckGlobal(ctx context.Context, sourceIP string) (time.Duration, error) {
	ok, retryAfter, err := l.hourly.Allow(ctx, sourceIP, HourlyLimit, HourlyWindow)
	if err != nil {
		return 0, err
	}
	if !ok {
		return retryAfter, domain.ErrRateLimited
	}

	ok, retryAfter, err = l.daily.Allow(ctx, sourceIP, DailyLimit, DailyWindow)
	if err != nil {
		return 0, err
	}
	if !ok {
		return retryAfter, domain.ErrRateLimited
	}
	return 0, nil
}
