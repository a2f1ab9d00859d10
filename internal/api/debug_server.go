package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/middleware"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName - имя сервиса в метриках и трассах HTTP
const ServiceName = "voxel_api"

// DebugServer - HTTP API для осмотра мира и ручных правок
type DebugServer struct {
	router *gin.Engine
	world  *world.VoxelWorld
	bus    eventbus.EventBus
	driver *world.Driver
	meshes *cache.MeshCache
	logger *logging.Logger
	addr   string
	server *http.Server
}

// Config содержит параметры отладочного сервера
type Config struct {
	Port       int                   // порт, 0 - 8088
	World      *world.VoxelWorld     // обязателен
	Bus        eventbus.EventBus     // необязательно, для статистики шины
	Driver     *world.Driver         // необязательно, для счётчика тиков
	Meshes     *cache.MeshCache      // необязательно, кеш мешей
	Registerer prometheus.Registerer // nil - дефолтный регистр
	Logger     *logging.Logger       // nil - глобальный логгер
}

// GenericResponse - общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewDebugServer создаёт сервер и настраивает маршруты
func NewDebugServer(cfg Config) *DebugServer {
	if cfg.World == nil {
		panic("api: world is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8088
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())
	router.Use(otelgin.Middleware(ServiceName))

	promMw := middleware.NewPrometheusMiddleware(ServiceName, cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	s := &DebugServer{
		router: router,
		world:  cfg.World,
		bus:    cfg.Bus,
		driver: cfg.Driver,
		meshes: cfg.Meshes,
		logger: cfg.Logger,
		addr:   fmt.Sprintf(":%d", cfg.Port),
	}
	s.setupRoutes()
	return s
}

func (s *DebugServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/world/stats", s.handleWorldStats)
		api.GET("/materials", s.handleMaterials)

		api.GET("/chunks/:x/:y/:z", s.handleChunk)
		api.GET("/chunks/:x/:y/:z/mesh", s.handleChunkMesh)

		api.GET("/voxels", s.handleGetVoxel)
		api.POST("/voxels", s.handleSetVoxel)

		api.POST("/commit", s.handleCommit)
		api.GET("/dirty", s.handleDirty)
	}
}

// Router возвращает gin.Engine (для тестов и встраивания)
func (s *DebugServer) Router() *gin.Engine {
	return s.router
}

// Addr возвращает адрес прослушивания
func (s *DebugServer) Addr() string {
	return s.addr
}

// Start блокирует до остановки сервера. После Shutdown возвращает nil.
func (s *DebugServer) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log().Info("🌐 Отладочный API слушает %s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("debug api: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (s *DebugServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *DebugServer) log() *logging.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.Default()
}

// handleHealth проверка состояния сервера
func (s *DebugServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// WorldStats - сводка по миру
type WorldStats struct {
	ChunkSize       int                 `json:"chunk_size"`
	DiagonalBorders bool                `json:"diagonal_borders"`
	Chunks          int                 `json:"chunks"`
	DirtyChunks     int                 `json:"dirty_chunks"`
	Ticks           uint64              `json:"ticks"`
	EventBus        *eventbus.Stats     `json:"event_bus,omitempty"`
	MeshCache       *cache.CacheMetrics `json:"mesh_cache,omitempty"`
}

func (s *DebugServer) handleWorldStats(c *gin.Context) {
	cfg := s.world.Config()
	stats := WorldStats{
		ChunkSize:       cfg.ChunkSize,
		DiagonalBorders: cfg.DiagonalBorders,
		Chunks:          s.world.ChunkCount(),
		DirtyChunks:     len(s.world.DirtyChunks()),
	}
	if s.driver != nil {
		stats.Ticks = s.driver.Ticks()
	}
	if s.bus != nil {
		busStats := s.bus.Metrics()
		stats.EventBus = &busStats
	}
	if s.meshes != nil {
		cacheStats := s.meshes.Metrics()
		stats.MeshCache = &cacheStats
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: stats})
}

func (s *DebugServer) handleMaterials(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: block.Materials()})
}

// ChunkInfo - состояние одного чанка
type ChunkInfo struct {
	Position       world.ChunkPosition `json:"position"`
	Size           int                 `json:"size"`
	SolidVoxels    int                 `json:"solid_voxels"`
	Materials      map[string]int      `json:"materials"`
	PendingChanges int                 `json:"pending_changes"`
	Dirty          bool                `json:"dirty"`
	Poisoned       bool                `json:"poisoned"`
}

func (s *DebugServer) handleChunk(c *gin.Context) {
	chunk, ok := s.lookupChunk(c)
	if !ok {
		return
	}

	info := ChunkInfo{
		Position:       chunk.Position,
		Size:           chunk.Size(),
		Materials:      make(map[string]int),
		PendingChanges: s.world.PendingChanges(chunk.Position),
		Dirty:          s.world.IsDirty(chunk.Position),
		Poisoned:       chunk.Poisoned(),
	}
	if !info.Poisoned {
		chunk.Read(func(data world.View) {
			n := chunk.Size()
			for x := 0; x < n; x++ {
				for y := 0; y < n; y++ {
					for z := 0; z < n; z++ {
						v := data.At(x, y, z)
						if v.IsTransparent() {
							continue
						}
						info.SolidVoxels++
						info.Materials[v.String()]++
					}
				}
			}
		})
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: info})
}

// MeshQuad - грань меша в ответе API
type MeshQuad struct {
	Center    [3]float32 `json:"center"`
	Direction string     `json:"direction"`
}

// MeshInfo - сводка меша чанка; Quads заполняется при ?quads=true
type MeshInfo struct {
	Position  world.ChunkPosition `json:"position"`
	QuadCount int                 `json:"quad_count"`
	Vertices  int                 `json:"vertices"`
	Triangles int                 `json:"triangles"`
	Cached    bool                `json:"cached"`
	Quads     []MeshQuad          `json:"quads,omitempty"`
}

func (s *DebugServer) handleChunkMesh(c *gin.Context) {
	chunk, ok := s.lookupChunk(c)
	if !ok {
		return
	}
	if chunk.Poisoned() {
		s.fail(c, http.StatusConflict, world.ErrChunkPoisoned.Error())
		return
	}

	mesh, cached := s.chunkMesh(c.Request.Context(), chunk)
	info := MeshInfo{
		Position:  chunk.Position,
		QuadCount: mesh.QuadCount(),
		Vertices:  mesh.VertexCount(),
		Triangles: mesh.TriangleCount(),
		Cached:    cached,
	}
	if withQuads, _ := strconv.ParseBool(c.Query("quads")); withQuads {
		info.Quads = make([]MeshQuad, 0, len(mesh.Quads))
		for _, q := range mesh.Quads {
			info.Quads = append(info.Quads, MeshQuad{Center: q.Center, Direction: q.Direction.String()})
		}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: info})
}

// chunkMesh отдаёт меш из кеша, если он построен из текущей версии чанка,
// иначе строит его заново и кеширует. Меш, устаревший ещё до записи,
// не кладётся в кеш.
func (s *DebugServer) chunkMesh(ctx context.Context, chunk *world.Chunk) (*world.ChunkMesh, bool) {
	pos := chunk.Position
	if s.meshes != nil {
		mesh, err := s.meshes.Get(ctx, pos, chunk.Version())
		if err == nil {
			return mesh, true
		}
		if !cache.IsCacheMiss(err) {
			s.log().Warn("⚠️ Кеш мешей %s: %v", pos, err)
		}
	}

	mesh, _ := s.world.MeshChunk(pos)
	if s.meshes != nil && mesh.Version == chunk.Version() {
		if err := s.meshes.Put(ctx, pos, mesh); err != nil {
			s.log().Warn("⚠️ Меш %s не сохранен в кеш: %v", pos, err)
		}
	}
	return mesh, false
}

// VoxelInfo - воксель по мировой координате
type VoxelInfo struct {
	X        int                 `json:"x"`
	Y        int                 `json:"y"`
	Z        int                 `json:"z"`
	Chunk    world.ChunkPosition `json:"chunk"`
	ID       block.BlockID       `json:"id"`
	Material string              `json:"material"`
}

func (s *DebugServer) handleGetVoxel(c *gin.Context) {
	p, err := parseVec(c.Query("x"), c.Query("y"), c.Query("z"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err.Error())
		return
	}
	chunkPos, _ := world.WorldToChunk(p, s.world.ChunkSize())
	if chunk, ok := s.world.Chunk(chunkPos); ok && chunk.Poisoned() {
		s.fail(c, http.StatusConflict, world.ErrChunkPoisoned.Error())
		return
	}

	v := s.world.VoxelAtBlock(p)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: VoxelInfo{
		X: p.X, Y: p.Y, Z: p.Z,
		Chunk:    chunkPos,
		ID:       v.ID,
		Material: v.String(),
	}})
}

// SetVoxelRequest - правка вокселя. Material - имя материала ("stone")
// или числовой ID.
type SetVoxelRequest struct {
	X        *int            `json:"x" binding:"required"`
	Y        *int            `json:"y" binding:"required"`
	Z        *int            `json:"z" binding:"required"`
	Material json.RawMessage `json:"material" binding:"required"`
}

func (s *DebugServer) handleSetVoxel(c *gin.Context) {
	var req SetVoxelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	id, err := parseMaterial(req.Material)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err.Error())
		return
	}

	p := vec.New(*req.X, *req.Y, *req.Z)
	s.world.SetVoxelAtBlock(p, block.NewVoxel(id))
	chunkPos, _ := world.WorldToChunk(p, s.world.ChunkSize())

	s.log().Debug("✏️ Правка %s = %s поставлена в очередь %s", p, block.NameOf(id), chunkPos)
	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Правка поставлена в очередь",
		Data: gin.H{
			"chunk":   chunkPos,
			"pending": s.world.PendingChanges(chunkPos),
		},
	})
}

func (s *DebugServer) handleCommit(c *gin.Context) {
	stats, err := s.commit(c.Request.Context())
	if err != nil {
		s.log().Error("❌ Фиксация через API не удалась: %v", err)
		s.fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: stats})
}

// commit выполняет внеочередной тик драйвера (или голую фиксацию без него)
// и превращает панику испорченного чанка в ошибку ответа
func (s *DebugServer) commit(ctx context.Context) (stats world.CommitStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("commit panicked: %v", r)
		}
	}()
	if s.driver != nil {
		return s.driver.Tick(ctx), nil
	}
	return s.world.ApplyVoxelChangesContext(ctx), nil
}

func (s *DebugServer) handleDirty(c *gin.Context) {
	dirty := s.world.DirtyChunks()
	if dirty == nil {
		dirty = []world.ChunkPosition{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: dirty})
}

// lookupChunk разбирает :x/:y/:z и возвращает существующий чанк;
// при ошибке ответ уже записан.
func (s *DebugServer) lookupChunk(c *gin.Context) (*world.Chunk, bool) {
	p, err := parseVec(c.Param("x"), c.Param("y"), c.Param("z"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	pos := world.NewChunkPosition(p.X, p.Y, p.Z)
	chunk, ok := s.world.Chunk(pos)
	if !ok {
		s.fail(c, http.StatusNotFound, fmt.Sprintf("чанк %s не загружен", pos))
		return nil, false
	}
	return chunk, true
}

func (s *DebugServer) fail(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

func parseVec(xs, ys, zs string) (vec.Vec3, error) {
	var out [3]int
	for i, raw := range []string{xs, ys, zs} {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return vec.Vec3{}, fmt.Errorf("неверная координата %q", raw)
		}
		out[i] = v
	}
	return vec.New(out[0], out[1], out[2]), nil
}

// parseMaterial принимает имя материала или его числовой ID
func parseMaterial(raw json.RawMessage) (block.BlockID, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		m, err := block.Lookup(name)
		if err != nil {
			return 0, err
		}
		return m.ID, nil
	}

	var id uint16
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("material must be a name or an id: %w", block.ErrUnknownMaterial)
	}
	if !block.IsValidBlockID(block.BlockID(id)) {
		return 0, fmt.Errorf("material %d: %w", id, block.ErrUnknownMaterial)
	}
	return block.BlockID(id), nil
}
