package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/butterfly/internal/adapters/cache"
	"github.com/alejandrodnm/butterfly/internal/domain"
)

type countingHistory struct {
	weeks []domain.HistoricalWeek
	err   error
	calls int
}

func (c *countingHistory) FetchResolvedWeeks(context.Context) ([]domain.HistoricalWeek, error) {
	c.calls++
	return c.weeks, c.err
}

// unreachable apunta a un puerto cerrado: todos los comandos fallan rápido.
func unreachable(t *testing.T) *cache.CorpusCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := cache.NewCorpusCache(client, time.Hour)
	t.Cleanup(func() { c.Close() })
	return c
}

func corpus() []domain.HistoricalWeek {
	start := time.Date(2025, 12, 2, 17, 0, 0, 0, time.UTC)
	return []domain.HistoricalWeek{domain.WeekFromCount(start, start.AddDate(0, 0, 7), 205)}
}

func TestCachedHistory_RedisDownFallsThrough(t *testing.T) {
	inner := &countingHistory{weeks: corpus()}
	h := cache.NewCachedHistory(inner, unreachable(t))

	weeks, err := h.FetchResolvedWeeks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, corpus(), weeks)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedHistory_NoCache(t *testing.T) {
	inner := &countingHistory{weeks: corpus()}
	h := cache.NewCachedHistory(inner, nil)

	_, err := h.FetchResolvedWeeks(context.Background())
	require.NoError(t, err)
	_, err = h.FetchResolvedWeeks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedHistory_InnerErrorPropagates(t *testing.T) {
	inner := &countingHistory{err: errors.New("gamma down")}
	h := cache.NewCachedHistory(inner, unreachable(t))

	_, err := h.FetchResolvedWeeks(context.Background())
	assert.EqualError(t, err, "gamma down")
}

func TestCorpusCache_PingUnreachable(t *testing.T) {
	err := unreachable(t).Ping(context.Background())
	assert.ErrorContains(t, err, "cache.Ping")
}

// inProcess levanta un Redis en memoria para el test.
func inProcess(t *testing.T, ttl time.Duration) (*cache.CorpusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewCorpusCache(cache.NewRedisClient(mr.Addr(), ""), ttl)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func richCorpus() []domain.HistoricalWeek {
	start := time.Date(2025, 11, 25, 17, 0, 0, 0, time.UTC)
	return []domain.HistoricalWeek{
		{Start: start, End: start.AddDate(0, 0, 7), Bucket: "200-219", Actual: 209, Title: "Elon Musk # tweets November 25 - December 2?"},
		{Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 14), Bucket: "140-339", Actual: 239},
	}
}

func TestCorpusCache_RoundTripAndTTL(t *testing.T) {
	c, mr := inProcess(t, 2*time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache is a miss")

	require.NoError(t, c.Set(ctx, richCorpus()))
	assert.Equal(t, 2*time.Hour, mr.TTL("butterfly:corpus"))

	weeks, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, richCorpus(), weeks)

	mr.FastForward(2*time.Hour + time.Second)
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "expired corpus is a miss")
}

func TestCorpusCache_Invalidate(t *testing.T) {
	c, mr := inProcess(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, richCorpus()))
	require.NoError(t, c.Invalidate(ctx))
	assert.False(t, mr.Exists("butterfly:corpus"))

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorpusCache_CorruptValueIsError(t *testing.T) {
	c, mr := inProcess(t, time.Hour)
	require.NoError(t, mr.Set("butterfly:corpus", "not json"))

	_, _, err := c.Get(context.Background())
	assert.ErrorContains(t, err, "cache.Get: decode")
}

func TestCachedHistory_HitSkipsInner(t *testing.T) {
	c, _ := inProcess(t, time.Hour)
	inner := &countingHistory{weeks: richCorpus()}
	h := cache.NewCachedHistory(inner, c)
	ctx := context.Background()

	first, err := h.FetchResolvedWeeks(ctx)
	require.NoError(t, err)
	second, err := h.FetchResolvedWeeks(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
}

func TestCachedHistory_RefetchesAfterExpiry(t *testing.T) {
	c, mr := inProcess(t, time.Hour)
	inner := &countingHistory{weeks: richCorpus()}
	h := cache.NewCachedHistory(inner, c)
	ctx := context.Background()

	_, err := h.FetchResolvedWeeks(ctx)
	require.NoError(t, err)
	mr.FastForward(time.Hour + time.Second)
	_, err = h.FetchResolvedWeeks(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}
