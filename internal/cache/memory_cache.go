package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryCache - кеш в памяти процесса поверх ristretto.
// Стоимость элемента равна длине значения в байтах.
type MemoryCache struct {
	cache *ristretto.Cache
	stats hitCounter
}

// NewMemoryCache создаёт кеш размером config.MaxCost байт (по умолчанию 64 МБ)
func NewMemoryCache(config *CacheConfig) (*MemoryCache, error) {
	maxCost := config.MaxCost
	if maxCost <= 0 {
		maxCost = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &MemoryCache{cache: c}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		m.stats.miss()
		return nil, ErrCacheMiss
	}
	m.stats.hit()
	return v.([]byte), nil
}

// Set записывает значение и дожидается его применения, чтобы следующий
// Get его увидел.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !m.cache.SetWithTTL(key, value, int64(len(value)), ttl) {
		return fmt.Errorf("cache set %s: rejected", key)
	}
	m.cache.Wait()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.cache.Del(k)
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.cache.Close()
	return nil
}

func (m *MemoryCache) GetMetrics() CacheMetrics {
	return m.stats.snapshot()
}
