// Package ratelimit enforces the login attempt and global per-IP caps
// of §4.6/§9, backed by Redis sorted sets so counters survive process
// restarts, with an in-process token-bucket backstop in front of
// them (§9 Open Question: rate limiter persistence).
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient narrows *redis.Client to the sorted-set operations this
// package needs, the same dependency-injection boundary used
// elsewhere (archive.Indexer, merge.PageSource), grounded on the
// teacher's queue/redis/queue.go Enqueue/Dequeue wrapping of *redis.Client.
type redisClient interface {
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

var _ redisClient = (*redis.Client)(nil)

// SlidingWindow counts events per identity within a trailing window
// using a Redis sorted set keyed by event timestamp, evicting entries
// older than the window on every check (sliding-window-log algorithm).
type SlidingWindow struct {
	client redisClient
	prefix string
}

// New builds a SlidingWindow over client, namespacing its Redis keys
// under prefix (e.g. "ratelimit:login:").
func New(client *redis.Client, prefix string) *SlidingWindow {
	return &SlidingWindow{client: client, prefix: prefix}
}

// Allow records one event for identity and reports whether it falls
// within limit events per window. On denial it also returns how long
// the caller should wait before retrying.
func (w *SlidingWindow) Allow(ctx context.Context, identity string, limit int, window time.Duration) (bool, time.Duration, error) {
	key := w.prefix + identity
	now := time.Now()
	cutoff := now.Add(-window)

	if err := w.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10)).Err(); err != nil {
		return false, 0, fmt.Errorf("evict expired rate-limit entries: %w", err)
	}

	count, err := w.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("count rate-limit window: %w", err)
	}

	if count >= int64(limit) {
		retryAfter := window
		if oldest, err := w.client.ZRangeWithScores(ctx, key, 0, 0).Result(); err == nil && len(oldest) == 1 {
			oldestAt := time.Unix(0, int64(oldest[0].Score))
			if wait := window - now.Sub(oldestAt); wait > 0 {
				retryAfter = wait
			}
		}
		return false, retryAfter, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	if err := w.client.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return false, 0, fmt.Errorf("record rate-limit event: %w", err)
	}
	if err := w.client.Expire(ctx, key, window).Err(); err != nil {
		return false, 0, fmt.Errorf("set rate-limit key ttl: %w", err)
	}

	return true, 0, nil
}
