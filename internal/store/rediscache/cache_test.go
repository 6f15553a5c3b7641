package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/report"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheRoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := New(client, time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)

	result := report.AnalysisResult{
		TotalRules:         2,
		TotalRelationships: 1,
		Counts:             map[relations.Kind]int{relations.Correlation: 1},
		Recommendations:    []report.Recommendation{{Type: report.RecommendManualReview}},
	}
	require.NoError(t, cache.Put(ctx, "fp", result))

	got, ok, err := cache.Get(ctx, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result, got)

	mr.FastForward(2 * time.Hour)
	_, ok, err = cache.Get(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires after ttl")
}

func TestCacheCorruptEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, _, err := New(client, time.Minute).Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestDisabledCache(t *testing.T) {
	var cache *Cache
	assert.False(t, cache.IsEnabled())
	_, ok, err := cache.Get(context.Background(), "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, New(nil, time.Minute).Put(context.Background(), "fp", report.AnalysisResult{}))
}
