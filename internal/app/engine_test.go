package app

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.ChunkSize = 4
	cfg.World.GenerateRadius = 1
	cfg.World.Workers = 2
	return cfg
}

func TestConfigConversion(t *testing.T) {
	cfg := testConfig()
	off := false
	cfg.World.DiagonalBorders = &off
	cfg.Generator.SeaLevel = -3
	cfg.Generator.CaveThreshold = 0.6

	wc := WorldConfig(cfg)
	assert.Equal(t, world.Config{ChunkSize: 4, DiagonalBorders: false}, wc)

	gc := GeneratorConfig(cfg)
	assert.Equal(t, cfg.Generator.Seed, gc.Seed)
	assert.Equal(t, -3, gc.SeaLevel)
	assert.Equal(t, 0.6, gc.CaveThreshold)
	assert.Equal(t, cfg.Generator.Scale, gc.Scale)
}

func TestNewBus_MemoryWithoutURL(t *testing.T) {
	bus, err := NewBus(config.EventBusConfig{Buffer: 8})
	require.NoError(t, err)
	defer bus.Close()

	_, ok := bus.(*eventbus.MemoryBus)
	assert.True(t, ok, "без URL должна использоваться шина в памяти")
}

func TestEngine_Bootstrap(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close(ctx)) }()

	require.NoError(t, e.Bootstrap(ctx))
	assert.Equal(t, 27, e.World.ChunkCount(), "радиус 1 дает куб 3×3×3")
	assert.Empty(t, e.World.DirtyChunks(), "после первых мешей помеченных чанков не остается")

	// Гало центрального чанка должно совпадать с соседями: меш копии,
	// собранной вручную из всех 26 соседей, совпадает с мешем мира.
	center, ok := e.World.Chunk(world.ChunkPosition{})
	require.True(t, ok)

	probe := world.NewChunk(world.ChunkPosition{}, 4)
	center.Read(func(src world.View) {
		dst := probe.Data()
		for x := 0; x < 4; x++ {
			for y := 0; y < 4; y++ {
				for z := 0; z < 4; z++ {
					dst.Set(x, y, z, src.At(x, y, z))
				}
			}
		}
	})
	for _, dir := range world.AllDirections() {
		neighbor, ok := e.World.Chunk(world.ChunkPosition{}.Add(dir))
		require.True(t, ok, "сосед %s", dir)
		neighbor.Read(func(world.View) {
			probe.CopyBorders(neighbor, dir)
		})
	}

	mesh, ok := e.World.MeshChunk(world.ChunkPosition{})
	require.True(t, ok)
	assert.Equal(t, probe.Mesh().Quads, mesh.Quads)
}

func TestEngine_RemeshOnCommit(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close(ctx)) }()

	require.NoError(t, e.Bootstrap(ctx))

	e.World.SetVoxelAtBlock(vec.New(100, 100, 100), block.NewVoxel(block.StoneBlockID))
	stats := e.Driver.Tick(ctx)
	assert.Equal(t, 1, stats.ChangesApplied)
	assert.Equal(t, uint64(1), e.Driver.Ticks())
	assert.Empty(t, e.World.DirtyChunks(), "обработчик фиксации перестраивает помеченные чанки")
}

func TestEngine_TickRemeshesChunksDirtiedOutsideTicks(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close(ctx)) }()

	require.NoError(t, e.Bootstrap(ctx))

	pos := world.ChunkPosition{}
	e.World.SetVoxelAtBlock(vec.New(1, 1, 1), block.NewVoxel(block.CoalBlockID))
	e.World.ApplyVoxelChanges()
	require.Contains(t, e.World.DirtyChunks(), pos, "фиксация вне тика помечает чанк")

	stats := e.Driver.Tick(ctx)
	assert.Zero(t, stats.ChunksDirtied, "сама фиксация тика ничего не меняла")
	assert.Empty(t, e.World.DirtyChunks(), "тик перестраивает все помеченные чанки")

	chunk, ok := e.World.Chunk(pos)
	require.True(t, ok)
	cached, err := e.Meshes.Get(ctx, pos, chunk.Version())
	require.NoError(t, err, "перестроенный меш должен попасть в кеш")
	fresh, _ := e.World.MeshChunk(pos)
	assert.Equal(t, fresh.Quads, cached.Quads)
}

func TestEngine_MeshesCached(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close(ctx)) }()

	require.NoError(t, e.Bootstrap(ctx))

	for _, pos := range e.World.Positions() {
		chunk, ok := e.World.Chunk(pos)
		require.True(t, ok)
		cached, err := e.Meshes.Get(ctx, pos, chunk.Version())
		require.NoError(t, err, "меш %s должен быть в кеше после старта", pos)
		fresh, ok := e.World.MeshChunk(pos)
		require.True(t, ok)
		assert.Equal(t, fresh.Quads, cached.Quads, "чанк %s", pos)
	}
}

func TestEngine_RemeshFailureDropsCachedMesh(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close(ctx)) }()

	require.NoError(t, e.Bootstrap(ctx))

	pos := world.ChunkPosition{}
	chunk, ok := e.World.Chunk(pos)
	require.True(t, ok)
	version := chunk.Version()
	_, err = e.Meshes.Get(ctx, pos, version)
	require.NoError(t, err)

	require.Panics(t, func() {
		chunk.Write(func(world.View) { panic("сбой записи") })
	})
	e.World.MarkDirty(pos)
	e.remesh(1, world.CommitStats{ChunksDirtied: 1})

	_, err = e.Meshes.Get(ctx, pos, version)
	assert.True(t, cache.IsCacheMiss(err), "меш испорченного чанка должен быть удалён из кеша")
}

func TestEngine_LogsWorldEvents(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close(ctx)) }()

	require.NoError(t, e.Bootstrap(ctx))

	assert.Eventually(t, func() bool {
		counts := e.Events.Counts()
		return counts[world.EventChunkGenerated] == 27 && counts[world.EventChunksCommitted] >= 1
	}, time.Second, 5*time.Millisecond, "слушатель должен получить события генерации и фиксации")
}
