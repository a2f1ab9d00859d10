package cache

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	c, err := NewMemoryCache(&CacheConfig{MaxCost: 1 << 20})
	require.NoError(t, err)
	return c
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t)
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, c.Set(ctx, "k", []byte("value"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, c.Delete(ctx, "k", "other"))
	_, err = c.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))

	m := c.GetMetrics()
	assert.Equal(t, int64(3), m.TotalRequests)
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(2), m.CacheMisses)
	assert.InDelta(t, 1.0/3, m.HitRatio, 1e-9)
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 50*time.Millisecond))
	_, err := c.Get(ctx, "short")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short")
		return IsCacheMiss(err)
	}, 3*time.Second, 20*time.Millisecond, "значение должно истечь")
}

func TestMeshCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mc, err := NewMeshCache(newMemoryCache(t), time.Minute)
	require.NoError(t, err)
	defer mc.Close()

	chunk := world.NewChunk(world.NewChunkPosition(2, -1, 0), 4)
	chunk.Data().Set(1, 2, 3, block.NewVoxel(block.StoneBlockID))
	chunk.Data().Set(0, 0, 0, block.NewVoxel(block.SandBlockID))
	mesh := chunk.Mesh()

	pos := chunk.Position
	_, err = mc.Get(ctx, pos, mesh.Version)
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, mc.Put(ctx, pos, mesh))
	got, err := mc.Get(ctx, pos, mesh.Version)
	require.NoError(t, err)
	assert.Equal(t, mesh.Quads, got.Quads)
	assert.Equal(t, mesh.Positions, got.Positions)
	assert.Equal(t, mesh.Normals, got.Normals)
	assert.Equal(t, mesh.Indices, got.Indices)

	require.NoError(t, mc.Invalidate(ctx, pos))
	_, err = mc.Get(ctx, pos, mesh.Version)
	assert.True(t, IsCacheMiss(err))
}

func TestMeshCache_RejectsOtherVersions(t *testing.T) {
	ctx := context.Background()
	mc, err := NewMeshCache(newMemoryCache(t), time.Minute)
	require.NoError(t, err)
	defer mc.Close()

	chunk := world.NewChunk(world.ChunkPosition{}, 3)
	chunk.Write(func(v world.View) { v.Set(1, 1, 1, block.NewVoxel(block.StoneBlockID)) })
	old := chunk.Mesh()
	require.NoError(t, mc.Put(ctx, chunk.Position, old))

	chunk.Write(func(v world.View) { v.Set(2, 1, 1, block.NewVoxel(block.StoneBlockID)) })
	require.Greater(t, chunk.Version(), old.Version, "запись должна менять версию")

	_, err = mc.Get(ctx, chunk.Position, chunk.Version())
	assert.ErrorIs(t, err, ErrStaleMesh)
	assert.True(t, IsCacheMiss(err), "меш другой версии считается промахом")

	got, err := mc.Get(ctx, chunk.Position, old.Version)
	require.NoError(t, err)
	assert.Equal(t, 6, got.QuadCount())

	m := mc.Metrics()
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(1), m.CacheMisses)
	assert.Equal(t, int64(1), m.StaleEntries)
}

func TestMeshCache_CorruptValue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCache(t)
	mc, err := NewMeshCache(repo, 0)
	require.NoError(t, err)
	defer mc.Close()

	pos := world.NewChunkPosition(0, 0, 0)
	require.NoError(t, repo.Set(ctx, MeshKey(pos), []byte("не zstd"), 0))

	_, err = mc.Get(ctx, pos, 0)
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestMeshKey(t *testing.T) {
	assert.Equal(t, "mesh:1:-2:3", MeshKey(world.NewChunkPosition(1, -2, 3)))
}

func TestRedisCache_ConnectFailure(t *testing.T) {
	// Порт 1 заведомо закрыт, Ping должен вернуть ошибку
	c, err := NewRedisCache(&CacheConfig{RedisURL: "127.0.0.1:1"})
	assert.Error(t, err)
	assert.Nil(t, c)
}
