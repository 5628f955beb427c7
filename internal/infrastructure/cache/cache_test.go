package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/config"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		URL:         mr.Addr(),
		PoolSize:    5,
		DialTimeout: 5 * time.Second,
	}
	client, err := NewRedisClient(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestNewRedisClient(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		_, err := NewRedisClient(context.Background(), &config.RedisConfig{URL: "localhost:6379"}, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := NewRedisClient(context.Background(), &config.RedisConfig{}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "redis config is required")
	})

	t.Run("connection failure", func(t *testing.T) {
		cfg := &config.RedisConfig{URL: "localhost:9999", PoolSize: 1, DialTimeout: 100 * time.Millisecond}
		_, err := NewRedisClient(context.Background(), cfg, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "redis connection failed")
	})
}

func TestRedisLocker(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, zaptest.NewLogger(t))
	ctx := context.Background()
	key := "dwqar:aggregate:org:2024-Annual"

	lease, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	t.Run("second holder conflicts", func(t *testing.T) {
		_, err := locker.Acquire(ctx, key, time.Minute)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeUpsertConflict))
	})

	t.Run("release frees the key", func(t *testing.T) {
		require.NoError(t, lease.Release(ctx))
		assert.False(t, mr.Exists(key))

		again, err := locker.Acquire(ctx, key, time.Minute)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("expired lease does not delete successor", func(t *testing.T) {
		first, err := locker.Acquire(ctx, key, time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		second, err := locker.Acquire(ctx, key, time.Minute)
		require.NoError(t, err)

		require.NoError(t, first.Release(ctx))
		assert.True(t, mr.Exists(key), "successor lock must survive stale release")
		require.NoError(t, second.Release(ctx))
	})
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	locker := NewLocalLocker()
	locker.now = func() time.Time { return now }

	lease, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.True(t, errors.HasCode(err, errors.CodeUpsertConflict))

	_, err = locker.Acquire(ctx, "other", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err, "expired entries are reclaimed")
}

func TestScoreCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewScoreCache(client, 10*time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()
	orgID := uuid.New()

	_, ok, err := c.GetLatest(ctx, orgID)
	require.NoError(t, err)
	assert.False(t, ok)

	prev := 70
	snap := &scoring.ComplianceScoreSnapshot{
		ID:             uuid.New(),
		OrganizationID: orgID,
		CalculatedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		OverallScore:   80,
		Breakdown: scoring.Breakdown{
			scoring.SubScoreDWSP: {Score: 100, Weight: 0.35},
		},
		Recommendations: []scoring.Recommendation{},
		Trend:           scoring.TrendImproving,
		PreviousScore:   &prev,
	}
	require.NoError(t, c.SetLatest(ctx, snap))
	assert.Equal(t, 10*time.Minute, mr.TTL(scoreKey(orgID)))

	got, ok, err := c.GetLatest(ctx, orgID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, 80, got.OverallScore)
	assert.Equal(t, scoring.TrendImproving, got.Trend)
	assert.Equal(t, 100.0, got.Breakdown.Score(scoring.SubScoreDWSP))
	require.NotNil(t, got.PreviousScore)
	assert.Equal(t, 70, *got.PreviousScore)

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		require.NoError(t, mr.Set(scoreKey(orgID), "{not json"))
		_, ok, err := c.GetLatest(ctx, orgID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalidate", func(t *testing.T) {
		require.NoError(t, c.SetLatest(ctx, snap))
		require.NoError(t, c.Invalidate(ctx, orgID))
		assert.False(t, mr.Exists(scoreKey(orgID)))
	})
}
