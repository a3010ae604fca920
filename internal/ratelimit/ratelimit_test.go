package ratelimit

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory sorted-set store backing the narrow
// redisClient interface, enough to exercise the sliding-window
// algorithm without a live Redis instance.
type fakeRedis struct {
	sets map[string]map[string]float64
}

func newFakeRedis() *fakeRedis { return &fakeRedis{sets: map[string]map[string]float64{}} }

func (f *fakeRedis) ZRemRangeByScore(_ context.Context, key, _min, max string) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	maxScore, _ := strconv.ParseFloat(max, 64)
	set := f.sets[key]
	removed := int64(0)
	for member, score := range set {
		if score <= maxScore {
			delete(set, member)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (f *fakeRedis) ZCard(_ context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	cmd.SetVal(int64(len(f.sets[key])))
	return cmd
}

func (f *fakeRedis) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	set, ok := f.sets[key]
	if !ok {
		set = map[string]float64{}
		f.sets[key] = set
	}
	for _, m := range members {
		set[m.Member.(string)] = m.Score
	}
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (f *fakeRedis) ZRangeWithScores(_ context.Context, key string, _, _ int64) *redis.ZSliceCmd {
	cmd := redis.NewZSliceCmd(context.Background())
	set := f.sets[key]
	members := make([]redis.Z, 0, len(set))
	for member, score := range set {
		members = append(members, redis.Z{Member: member, Score: score})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Score < members[j].Score })
	if len(members) > 1 {
		members = members[:1]
	}
	cmd.SetVal(members)
	return cmd
}

func (f *fakeRedis) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(context.Background())
	cmd.SetVal(true)
	return cmd
}

var _ redisClient = (*fakeRedis)(nil)

func TestSlidingWindowAllowsUpToLimit(t *testing.T) {
	w := &SlidingWindow{client: newFakeRedis(), prefix: "test:"}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ok, _, err := w.Allow(ctx, "1.2.3.4", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d should be allowed", i)
	}
}

func TestSlidingWindowDeniesBeyondLimit(t *testing.T) {
	w := &SlidingWindow{client: newFakeRedis(), prefix: "test:"}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, err := w.Allow(ctx, "1.2.3.4", 5, time.Minute)
		require.NoError(t, err)
	}
	ok, retryAfter, err := w.Allow(ctx, "1.2.3.4", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestSlidingWindowTracksIdentitiesIndependently(t *testing.T) {
	w := &SlidingWindow{client: newFakeRedis(), prefix: "test:"}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, _ = w.Allow(ctx, "1.2.3.4", 5, time.Minute)
	}
	ok, _, err := w.Allow(ctx, "5.6.7.8", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiterDeniesSixthAttemptWithinMinute(t *testing.T) {
	fake := newFakeRedis()
	l := &LoginLimiter{login: &SlidingWindow{client: fake, prefix: "login:"}}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.CheckLogin(ctx, "9.9.9.9")
		require.NoError(t, err)
	}
	_, err := l.CheckLogin(ctx, "9.9.9.9")
	assert.Error(t, err)
}

func TestBackstopAllowsWithinBurstThenDenies(t *testing.T) {
	b := NewBackstop(1, 2)
	assert.True(t, b.Allow("1.1.1.1"))
	assert.True(t, b.Allow("1.1.1.1"))
	assert.False(t, b.Allow("1.1.1.1"))
}

func TestBackstopTracksIPsIndependently(t *testing.T) {
	b := NewBackstop(1, 1)
	assert.True(t, b.Allow("1.1.1.1"))
	assert.True(t, b.Allow("2.2.2.2"))
}

func TestBackstopSweepEvictsIdleLimiters(t *testing.T) {
	b := NewBackstop(1, 1)
	b.Allow("1.1.1.1")
	b.lastSeen["1.1.1.1"] = time.Now().Add(-time.Hour)
	removed := b.Sweep(time.Minute)
	assert.Equal(t, 1, removed)
}
