package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*DebugServer, *world.VoxelWorld) {
	t.Helper()
	w := world.NewVoxelWorld(world.Config{ChunkSize: 4, DiagonalBorders: true}, world.EmptyGenerator)
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(func() { _ = bus.Close() })
	w.SetEventBus(bus)

	s := NewDebugServer(Config{
		World:      w,
		Bus:        bus,
		Driver:     world.NewDriver(w, 0),
		Registerer: prometheus.NewRegistry(),
	})
	return s, w
}

func do(t *testing.T, s *DebugServer, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var resp apiResponse
	if bytes.HasPrefix(rec.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestDebugServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestDebugServer_MetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/api/dirty", nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voxel_api_http_request_duration_seconds")
}

func TestDebugServer_WorldStats(t *testing.T) {
	s, w := newTestServer(t)
	w.ChunkAtOrCreate(world.NewChunkPosition(0, 0, 0))
	w.ChunkAtOrCreate(world.NewChunkPosition(1, 0, 0))

	code, resp := do(t, s, http.MethodGet, "/api/world/stats", nil)
	require.Equal(t, http.StatusOK, code)

	var stats WorldStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 4, stats.ChunkSize)
	assert.True(t, stats.DiagonalBorders)
	assert.Equal(t, 2, stats.Chunks)
	assert.NotNil(t, stats.EventBus, "статистика шины должна присутствовать")
}

func TestDebugServer_EditCommitRead(t *testing.T) {
	s, w := newTestServer(t)

	code, resp := do(t, s, http.MethodPost, "/api/voxels", map[string]any{"x": 5, "y": 1, "z": 1, "material": "Stone"})
	require.Equal(t, http.StatusAccepted, code, resp.Message)
	assert.Equal(t, 1, w.PendingChanges(world.NewChunkPosition(1, 0, 0)))

	// До фиксации правка не видна
	code, resp = do(t, s, http.MethodGet, "/api/voxels?x=5&y=1&z=1", nil)
	require.Equal(t, http.StatusOK, code)
	var before VoxelInfo
	require.NoError(t, json.Unmarshal(resp.Data, &before))
	assert.Equal(t, block.AirBlockID, before.ID)

	code, resp = do(t, s, http.MethodPost, "/api/commit", nil)
	require.Equal(t, http.StatusOK, code)
	var stats world.CommitStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.ChangesApplied)
	assert.Equal(t, 1, stats.ChunksEdited)

	code, resp = do(t, s, http.MethodGet, "/api/voxels?x=5&y=1&z=1", nil)
	require.Equal(t, http.StatusOK, code)
	var after VoxelInfo
	require.NoError(t, json.Unmarshal(resp.Data, &after))
	assert.Equal(t, block.StoneBlockID, after.ID)
	assert.Equal(t, "stone", after.Material)
	assert.Equal(t, world.NewChunkPosition(1, 0, 0), after.Chunk)

	code, resp = do(t, s, http.MethodGet, "/api/dirty", nil)
	require.Equal(t, http.StatusOK, code)
	var dirty []world.ChunkPosition
	require.NoError(t, json.Unmarshal(resp.Data, &dirty))
	assert.Contains(t, dirty, world.NewChunkPosition(1, 0, 0))
}

func TestDebugServer_SetVoxelByID(t *testing.T) {
	s, w := newTestServer(t)

	code, _ := do(t, s, http.MethodPost, "/api/voxels", map[string]any{"x": -1, "y": 0, "z": 0, "material": int(block.CoalBlockID)})
	require.Equal(t, http.StatusAccepted, code)
	w.ApplyVoxelChanges()

	assert.Equal(t, block.CoalBlockID, w.VoxelAt(world.NewChunkPosition(-1, 0, 0), vec.New(3, 0, 0)).ID)
}

func TestDebugServer_SetVoxelRejectsBadInput(t *testing.T) {
	s, w := newTestServer(t)

	cases := []map[string]any{
		{"x": 0, "y": 0, "z": 0, "material": "unobtainium"},
		{"x": 0, "y": 0, "z": 0, "material": 9999},
		{"x": 0, "y": 0, "material": "stone"},
		{"x": 0, "y": 0, "z": 0, "material": true},
	}
	for _, body := range cases {
		code, resp := do(t, s, http.MethodPost, "/api/voxels", body)
		assert.Equal(t, http.StatusBadRequest, code, "запрос %v", body)
		assert.False(t, resp.Success)
	}
	assert.Equal(t, 0, w.PendingChanges(world.ChunkPosition{}), "ошибочные правки не попадают в очередь")
}

func TestDebugServer_Chunk(t *testing.T) {
	s, w := newTestServer(t)

	code, _ := do(t, s, http.MethodGet, "/api/chunks/0/0/0", nil)
	assert.Equal(t, http.StatusNotFound, code, "чанк не должен создаваться при осмотре")
	assert.Equal(t, 0, w.ChunkCount())

	code, _ = do(t, s, http.MethodGet, "/api/chunks/a/0/0", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	w.SetVoxelAt(world.ChunkPosition{}, vec.New(1, 1, 1), block.NewVoxel(block.StoneBlockID))
	w.SetVoxelAt(world.ChunkPosition{}, vec.New(2, 1, 1), block.NewVoxel(block.DirtBlockID))
	w.ApplyVoxelChanges()

	code, resp := do(t, s, http.MethodGet, "/api/chunks/0/0/0", nil)
	require.Equal(t, http.StatusOK, code)
	var info ChunkInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, 4, info.Size)
	assert.Equal(t, 2, info.SolidVoxels)
	assert.Equal(t, map[string]int{"stone": 1, "dirt": 1}, info.Materials)
	assert.True(t, info.Dirty)
	assert.False(t, info.Poisoned)
}

func TestDebugServer_ChunkMesh(t *testing.T) {
	s, w := newTestServer(t)
	w.SetVoxelAt(world.ChunkPosition{}, vec.New(1, 1, 1), block.NewVoxel(block.StoneBlockID))
	w.ApplyVoxelChanges()

	code, resp := do(t, s, http.MethodGet, "/api/chunks/0/0/0/mesh", nil)
	require.Equal(t, http.StatusOK, code)
	var info MeshInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, 6, info.QuadCount)
	assert.Equal(t, 24, info.Vertices)
	assert.Equal(t, 12, info.Triangles)
	assert.Empty(t, info.Quads, "грани отдаются только по запросу")

	code, resp = do(t, s, http.MethodGet, "/api/chunks/0/0/0/mesh?quads=true", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	require.Len(t, info.Quads, 6)
	for _, q := range info.Quads {
		assert.NotEmpty(t, q.Direction)
	}
}

func TestDebugServer_PoisonedChunk(t *testing.T) {
	s, w := newTestServer(t)
	chunk := w.ChunkAtOrCreate(world.ChunkPosition{})
	require.Panics(t, func() {
		chunk.Write(func(world.View) { panic("сбой записи") })
	})

	code, _ := do(t, s, http.MethodGet, "/api/voxels?x=0&y=0&z=0", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, s, http.MethodGet, "/api/chunks/0/0/0/mesh", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, resp := do(t, s, http.MethodGet, "/api/chunks/0/0/0", nil)
	require.Equal(t, http.StatusOK, code)
	var info ChunkInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.True(t, info.Poisoned)

	w.SetVoxelAt(world.ChunkPosition{}, vec.New(0, 0, 0), block.NewVoxel(block.StoneBlockID))
	code, resp = do(t, s, http.MethodPost, "/api/commit", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, resp.Message, world.ErrChunkPoisoned.Error())
}

func newMeshCache(t *testing.T, wrap func(cache.CacheRepo) cache.CacheRepo) *cache.MeshCache {
	t.Helper()
	mem, err := cache.NewMemoryCache(&cache.CacheConfig{MaxCost: 1 << 20})
	require.NoError(t, err)
	var repo cache.CacheRepo = mem
	if wrap != nil {
		repo = wrap(repo)
	}
	meshes, err := cache.NewMeshCache(repo, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = meshes.Close() })
	return meshes
}

func getMeshInfo(t *testing.T, s *DebugServer) MeshInfo {
	t.Helper()
	code, resp := do(t, s, http.MethodGet, "/api/chunks/0/0/0/mesh", nil)
	require.Equal(t, http.StatusOK, code)
	var info MeshInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	return info
}

func TestDebugServer_ChunkMeshCache(t *testing.T) {
	w := world.NewVoxelWorld(world.Config{ChunkSize: 4, DiagonalBorders: true}, world.EmptyGenerator)
	meshes := newMeshCache(t, nil)
	s := NewDebugServer(Config{World: w, Meshes: meshes, Registerer: prometheus.NewRegistry()})

	w.SetVoxelAt(world.ChunkPosition{}, vec.New(1, 1, 1), block.NewVoxel(block.StoneBlockID))
	w.ApplyVoxelChanges()

	info := getMeshInfo(t, s)
	assert.False(t, info.Cached, "первое обращение заполняет кеш")
	assert.Equal(t, 6, info.QuadCount)

	info = getMeshInfo(t, s)
	assert.True(t, info.Cached, "меш текущей версии отдаётся из кеша")
	assert.Equal(t, 6, info.QuadCount)

	// Правка меняет версию чанка, старая запись больше не отдаётся
	w.SetVoxelAt(world.ChunkPosition{}, vec.New(2, 1, 1), block.NewVoxel(block.StoneBlockID))
	w.ApplyVoxelChanges()
	info = getMeshInfo(t, s)
	assert.False(t, info.Cached)
	assert.Equal(t, 10, info.QuadCount)

	info = getMeshInfo(t, s)
	assert.True(t, info.Cached)
	assert.Equal(t, 10, info.QuadCount)

	code, resp := do(t, s, http.MethodGet, "/api/world/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var stats WorldStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	require.NotNil(t, stats.MeshCache)
	assert.Equal(t, int64(2), stats.MeshCache.CacheHits)
	assert.Equal(t, int64(1), stats.MeshCache.StaleEntries)
}

// interceptRepo один раз вызывает before перед записью в кеш
type interceptRepo struct {
	cache.CacheRepo
	armed  atomic.Bool
	before func()
}

func (r *interceptRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.armed.CompareAndSwap(true, false) {
		r.before()
	}
	return r.CacheRepo.Set(ctx, key, value, ttl)
}

func TestDebugServer_LateMeshWriteDoesNotHideCommit(t *testing.T) {
	ctx := context.Background()
	pos := world.ChunkPosition{}
	w := world.NewVoxelWorld(world.Config{ChunkSize: 4, DiagonalBorders: true}, world.EmptyGenerator)
	w.SetVoxelAt(pos, vec.New(1, 1, 1), block.NewVoxel(block.StoneBlockID))
	w.ApplyVoxelChanges()

	var meshes *cache.MeshCache
	intercept := &interceptRepo{}
	// Пока запрос строит старый меш, тик фиксирует правку, перестраивает
	// меш и кладёт его в кеш. Затем запрос дописывает свой старый меш.
	intercept.before = func() {
		w.SetVoxelAt(pos, vec.New(2, 1, 1), block.NewVoxel(block.StoneBlockID))
		w.ApplyVoxelChanges()
		w.TakeDirty()
		mesh, ok := w.MeshChunk(pos)
		require.True(t, ok)
		require.NoError(t, meshes.Put(ctx, pos, mesh))
	}
	meshes = newMeshCache(t, func(repo cache.CacheRepo) cache.CacheRepo {
		intercept.CacheRepo = repo
		return intercept
	})
	s := NewDebugServer(Config{World: w, Meshes: meshes, Registerer: prometheus.NewRegistry()})

	intercept.armed.Store(true)
	info := getMeshInfo(t, s)
	assert.Equal(t, 6, info.QuadCount, "запрос видел данные до фиксации")
	require.False(t, intercept.armed.Load(), "фиксация должна случиться во время запроса")
	assert.False(t, w.IsDirty(pos))

	info = getMeshInfo(t, s)
	assert.False(t, info.Cached, "меш старой версии не должен отдаваться")
	assert.Equal(t, 10, info.QuadCount)

	info = getMeshInfo(t, s)
	assert.True(t, info.Cached)
	assert.Equal(t, 10, info.QuadCount)
}

func TestDebugServer_CommitRunsDriverTick(t *testing.T) {
	s, w := newTestServer(t)
	var hooked []world.CommitStats
	s.driver.OnCommit(func(_ uint64, stats world.CommitStats) { hooked = append(hooked, stats) })

	w.SetVoxelAt(world.ChunkPosition{}, vec.New(1, 1, 1), block.NewVoxel(block.StoneBlockID))
	code, _ := do(t, s, http.MethodPost, "/api/commit", nil)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, uint64(1), s.driver.Ticks(), "фиксация через API - это тик драйвера")
	require.Len(t, hooked, 1, "обработчик фиксации должен вызываться")
	assert.Equal(t, 1, hooked[0].ChangesApplied)
}
