package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// CacheRepo определяет интерфейс для кеширования данных.
//
// Использование:
//
//	cache := NewMemoryCache(config)
//	data, err := cache.Get(ctx, "key")
//	err = cache.Set(ctx, "key", data, 30*time.Second)
type CacheRepo interface {
	// Get получает значение по ключу из кеша.
	// Возвращает ErrCacheMiss если ключ не найден.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кеше с указанным TTL.
	// TTL = 0 означает отсутствие истечения.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключи из кеша. Отсутствующие ключи игнорируются.
	Delete(ctx context.Context, keys ...string) error

	// Close закрывает соединение с кешем.
	Close() error

	// GetMetrics возвращает метрики кеша.
	GetMetrics() CacheMetrics
}

// CacheMetrics содержит метрики попаданий кеша.
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRatio      float64 `json:"hit_ratio"`
	StaleEntries  int64   `json:"stale_entries,omitempty"`
}

// CacheConfig содержит конфигурацию для кеша.
type CacheConfig struct {
	// Redis; пустой адрес - кеш в памяти процесса
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Размер кеша в памяти, байт
	MaxCost int64

	DefaultTTL time.Duration
}

// ErrCacheMiss возвращается, когда ключа нет в кеше
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss проверяет, является ли ошибка промахом кеша.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// hitCounter считает попадания для GetMetrics
type hitCounter struct {
	requests atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

func (h *hitCounter) hit()  { h.requests.Add(1); h.hits.Add(1) }
func (h *hitCounter) miss() { h.requests.Add(1); h.misses.Add(1) }

func (h *hitCounter) snapshot() CacheMetrics {
	m := CacheMetrics{
		TotalRequests: h.requests.Load(),
		CacheHits:     h.hits.Load(),
		CacheMisses:   h.misses.Load(),
	}
	if m.TotalRequests > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(m.TotalRequests)
	}
	return m
}
