package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-engine/internal/world"
	"github.com/klauspost/compress/zstd"
)

// ErrStaleMesh - в кеше лежит меш другой версии чанка. Считается промахом.
var ErrStaleMesh = fmt.Errorf("%w: stale mesh", ErrCacheMiss)

// MeshCache хранит построенные меши чанков, сжатые zstd.
// Меш отдаётся только для той версии чанка, из которой он построен,
// поэтому запоздалая запись старого меша не может подменить текущий.
type MeshCache struct {
	repo  CacheRepo
	ttl   time.Duration
	stale atomic.Int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewMeshCache создаёт кеш мешей поверх repo
func NewMeshCache(repo CacheRepo, ttl time.Duration) (*MeshCache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &MeshCache{repo: repo, ttl: ttl, encoder: enc, decoder: dec}, nil
}

// MeshKey возвращает ключ кеша для позиции чанка
func MeshKey(pos world.ChunkPosition) string {
	return fmt.Sprintf("mesh:%d:%d:%d", pos.X, pos.Y, pos.Z)
}

// Put сохраняет меш чанка вместе с его версией
func (c *MeshCache) Put(ctx context.Context, pos world.ChunkPosition, mesh *world.ChunkMesh) error {
	data, err := json.Marshal(mesh)
	if err != nil {
		return fmt.Errorf("marshal mesh %s: %w", pos, err)
	}
	return c.repo.Set(ctx, MeshKey(pos), c.encoder.EncodeAll(data, nil), c.ttl)
}

// Get возвращает меш, построенный из версии version чанка. Отсутствие
// записи и запись другой версии дают ошибку, для которой IsCacheMiss == true.
func (c *MeshCache) Get(ctx context.Context, pos world.ChunkPosition, version uint64) (*world.ChunkMesh, error) {
	raw, err := c.repo.Get(ctx, MeshKey(pos))
	if err != nil {
		return nil, err
	}
	data, err := c.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress mesh %s: %w", pos, err)
	}
	var mesh world.ChunkMesh
	if err := json.Unmarshal(data, &mesh); err != nil {
		return nil, fmt.Errorf("unmarshal mesh %s: %w", pos, err)
	}
	if mesh.Version != version {
		c.stale.Add(1)
		return nil, fmt.Errorf("mesh %s v%d, chunk v%d: %w", pos, mesh.Version, version, ErrStaleMesh)
	}
	return &mesh, nil
}

// Invalidate удаляет меши указанных чанков
func (c *MeshCache) Invalidate(ctx context.Context, positions ...world.ChunkPosition) error {
	keys := make([]string, len(positions))
	for i, p := range positions {
		keys[i] = MeshKey(p)
	}
	return c.repo.Delete(ctx, keys...)
}

// Metrics возвращает метрики нижележащего кеша; устаревшие записи
// засчитываются как промахи.
func (c *MeshCache) Metrics() CacheMetrics {
	m := c.repo.GetMetrics()
	stale := c.stale.Load()
	m.CacheHits -= stale
	m.CacheMisses += stale
	m.StaleEntries = stale
	m.HitRatio = 0
	if m.TotalRequests > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(m.TotalRequests)
	}
	return m
}

// Close освобождает кодеки и закрывает кеш
func (c *MeshCache) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return c.repo.Close()
}
