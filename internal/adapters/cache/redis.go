package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

const (
	corpusKey  = "butterfly:corpus"
	DefaultTTL = 24 * time.Hour
)

// NewRedisClient crea el cliente. No conecta hasta el primer comando; usar Ping para comprobarlo.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          0,
		DialTimeout: 2 * time.Second,
	})
}

// cachedWeek es la forma JSON de una semana en Redis.
type cachedWeek struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Bucket string    `json:"bucket"`
	Actual int       `json:"actual"`
	Title  string    `json:"title,omitempty"`
}

// CorpusCache guarda el corpus histórico en Redis con TTL.
type CorpusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCorpusCache crea la caché. ttl <= 0 usa DefaultTTL.
func NewCorpusCache(client *redis.Client, ttl time.Duration) *CorpusCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CorpusCache{client: client, ttl: ttl}
}

// Ping comprueba la conexión.
func (c *CorpusCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache.Ping: %w", err)
	}
	return nil
}

// Get devuelve el corpus cacheado. Un miss es (nil, false, nil).
func (c *CorpusCache) Get(ctx context.Context) ([]domain.HistoricalWeek, bool, error) {
	val, err := c.client.Get(ctx, corpusKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache.Get: %w", err)
	}

	var raw []cachedWeek
	if err := json.Unmarshal(val, &raw); err != nil {
		return nil, false, fmt.Errorf("cache.Get: decode: %w", err)
	}
	weeks := make([]domain.HistoricalWeek, len(raw))
	for i, w := range raw {
		weeks[i] = domain.HistoricalWeek{Start: w.Start, End: w.End, Bucket: w.Bucket, Actual: w.Actual, Title: w.Title}
	}
	return weeks, true, nil
}

// Set guarda el corpus con el TTL configurado.
func (c *CorpusCache) Set(ctx context.Context, weeks []domain.HistoricalWeek) error {
	raw := make([]cachedWeek, len(weeks))
	for i, w := range weeks {
		raw[i] = cachedWeek{Start: w.Start, End: w.End, Bucket: w.Bucket, Actual: w.Actual, Title: w.Title}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("cache.Set: encode: %w", err)
	}
	if err := c.client.Set(ctx, corpusKey, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache.Set: %w", err)
	}
	return nil
}

// Invalidate borra el corpus cacheado (modo --refresh).
func (c *CorpusCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, corpusKey).Err(); err != nil {
		return fmt.Errorf("cache.Invalidate: %w", err)
	}
	return nil
}

// Close cierra la conexión.
func (c *CorpusCache) Close() error {
	return c.client.Close()
}

// CachedHistory envuelve un HistoryProvider con la caché de Redis.
// Cualquier fallo de Redis se registra y se ignora: la fuente sigue siendo Gamma.
type CachedHistory struct {
	inner ports.HistoryProvider
	cache *CorpusCache
}

// NewCachedHistory crea el decorador. cache puede ser nil (sin caché).
func NewCachedHistory(inner ports.HistoryProvider, cache *CorpusCache) *CachedHistory {
	return &CachedHistory{inner: inner, cache: cache}
}

// FetchResolvedWeeks devuelve el corpus cacheado o lo descarga y lo cachea.
func (h *CachedHistory) FetchResolvedWeeks(ctx context.Context) ([]domain.HistoricalWeek, error) {
	if h.cache != nil {
		weeks, ok, err := h.cache.Get(ctx)
		switch {
		case err != nil:
			slog.Warn("corpus cache unavailable", "err", err)
		case ok && len(weeks) > 0:
			slog.Debug("corpus cache hit", "weeks", len(weeks))
			return weeks, nil
		}
	}

	weeks, err := h.inner.FetchResolvedWeeks(ctx)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, weeks); err != nil {
			slog.Warn("corpus cache write failed", "err", err)
		}
	}
	return weeks, nil
}
