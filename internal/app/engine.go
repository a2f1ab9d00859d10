package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/api"
	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine связывает мир, шину событий, цикл фиксации и отладочный API
type Engine struct {
	cfg *config.Config

	World   *world.VoxelWorld
	Systems *world.Systems
	Driver  *world.Driver
	Bus     eventbus.EventBus
	Meshes  *cache.MeshCache
	API     *api.DebugServer
	Events  *eventbus.LoggingListener

	exporter          *eventbus.MetricsExporter
	shutdownTelemetry observability.ShutdownFunc
}

// WorldConfig переводит секцию world в параметры мира
func WorldConfig(cfg *config.Config) world.Config {
	return world.Config{
		ChunkSize:       cfg.World.ChunkSize,
		DiagonalBorders: cfg.World.Diagonal(),
	}
}

// GeneratorConfig переводит секцию generator в параметры ландшафта
func GeneratorConfig(cfg *config.Config) world.GeneratorConfig {
	g := cfg.Generator
	return world.GeneratorConfig{
		Seed:          g.Seed,
		Scale:         g.Scale,
		Amplitude:     g.Amplitude,
		BaseHeight:    g.BaseHeight,
		SeaLevel:      g.SeaLevel,
		DirtDepth:     g.DirtDepth,
		CaveScale:     g.CaveScale,
		CaveThreshold: g.CaveThreshold,
	}
}

// NewBus создаёт шину: JetStream, если задан URL, иначе в памяти
func NewBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	bus, err := eventbus.NewJetStreamBus(eventbus.JetStreamConfig{
		URL:       cfg.URL,
		Stream:    cfg.Stream,
		Retention: time.Duration(cfg.Retention) * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("event bus: %w", err)
	}
	return bus, nil
}

// NewMeshCache создаёт кеш мешей: Redis, если задан адрес, иначе в памяти
func NewMeshCache(cfg config.CacheConfig) (*cache.MeshCache, error) {
	cc := &cache.CacheConfig{
		RedisURL:      cfg.RedisURL,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		MaxCost:       int64(cfg.MemoryMB) << 20,
		DefaultTTL:    time.Duration(cfg.TTLSeconds) * time.Second,
	}

	var repo cache.CacheRepo
	var err error
	if cc.RedisURL != "" {
		repo, err = cache.NewRedisCache(cc)
	} else {
		repo, err = cache.NewMemoryCache(cc)
	}
	if err != nil {
		return nil, fmt.Errorf("mesh cache: %w", err)
	}

	meshes, err := cache.NewMeshCache(repo, cc.DefaultTTL)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	return meshes, nil
}

// New собирает движок. Метрики регистрируются в reg (nil - дефолтный регистр).
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Engine, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e := &Engine{cfg: cfg, shutdownTelemetry: observability.NoopShutdown}

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			return nil, err
		}
		e.shutdownTelemetry = shutdown
	}

	bus, err := NewBus(cfg.EventBus)
	if err != nil {
		_ = e.shutdownTelemetry(ctx)
		return nil, err
	}
	e.Bus = bus

	e.Events, err = eventbus.StartLoggingListener(ctx, bus)
	if err != nil {
		_ = bus.Close()
		_ = e.shutdownTelemetry(ctx)
		return nil, err
	}
	e.exporter = eventbus.NewMetricsExporter(bus, reg)

	e.Meshes, err = NewMeshCache(cfg.Cache)
	if err != nil {
		e.Events.Unsubscribe()
		_ = bus.Close()
		_ = e.shutdownTelemetry(ctx)
		return nil, err
	}

	generator := world.NewProceduralGenerator(GeneratorConfig(cfg))
	e.World = world.NewVoxelWorld(WorldConfig(cfg), generator)
	e.World.SetMetrics(world.NewMetrics(reg))
	e.World.SetEventBus(bus)

	e.Systems = world.NewSystems(e.World, cfg.World.Workers)
	e.Driver = world.NewDriver(e.World, time.Duration(cfg.World.TickIntervalMs)*time.Millisecond)
	e.Driver.OnCommit(e.remesh)

	// HTTP-логи пишутся в отдельный файл компонента api
	var apiLogger *logging.Logger
	if cfg.Logging.ToFile {
		apiLogger = logging.GetAPILogger()
	}

	e.API = api.NewDebugServer(api.Config{
		Port:       cfg.Server.GetAPIPort(),
		World:      e.World,
		Bus:        bus,
		Driver:     e.Driver,
		Meshes:     e.Meshes,
		Registerer: reg,
		Logger:     apiLogger,
	})

	logging.Info("🧱 Движок собран: чанк %d³, диагональные гало=%v, seed=%d",
		cfg.World.ChunkSize, cfg.World.Diagonal(), cfg.Generator.Seed)
	return e, nil
}

// Bootstrap генерирует чанки вокруг начала координат, выравнивает их гало
// и строит первые меши.
func (e *Engine) Bootstrap(ctx context.Context) error {
	start := time.Now()
	n, err := e.Systems.GenerateAround(world.ChunkPosition{}, e.cfg.World.GenerateRadius)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	stats := e.World.ApplyVoxelChangesContext(ctx)
	meshes, err := e.Systems.RemeshDirty()
	if err != nil {
		return fmt.Errorf("bootstrap remesh: %w", err)
	}
	e.storeMeshes(ctx, meshes)

	quads := 0
	for _, m := range meshes {
		quads += m.QuadCount()
	}
	logging.Info("🌍 Стартовая область готова за %v: %d чанков, %d синхронизаций гало, %d граней",
		time.Since(start).Round(time.Millisecond), n, stats.BordersSynced, quads)
	return nil
}

// Run запускает цикл фиксации и API и блокирует до отмены ctx
// или ошибки сервера.
func (e *Engine) Run(ctx context.Context) error {
	e.exporter.Start(5 * time.Second)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		e.Driver.Run(ctx)
	}()

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- e.API.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-apiErr:
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := e.API.Shutdown(shutdownCtx); err != nil {
		logging.Warn("⚠️ Остановка API: %v", err)
	}
	<-driverDone
	return runErr
}

// Close освобождает ресурсы движка. Вызывать после Run.
func (e *Engine) Close(ctx context.Context) error {
	e.exporter.Stop()
	e.Events.Unsubscribe()
	logging.Info("📊 События за время работы: %v", e.Events.Summary())
	e.Systems.Close()

	var errs []error
	if err := e.Meshes.Close(); err != nil {
		errs = append(errs, fmt.Errorf("mesh cache: %w", err))
	}
	if err := e.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}
	if err := e.shutdownTelemetry(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// remesh перестраивает все помеченные чанки, а не только помеченные этой
// фиксацией: чанки могли быть помечены вне тика.
func (e *Engine) remesh(tick uint64, _ world.CommitStats) {
	dirty := e.World.DirtyChunks()
	if len(dirty) == 0 {
		return
	}
	meshes, err := e.Systems.RemeshDirty()
	if err != nil {
		logging.Error("❌ Тик %d: перестроение мешей: %v", tick, err)
	}
	ctx := context.Background()
	e.storeMeshes(ctx, meshes)

	// Чанки без нового меша не должны отдаваться из кеша
	var stale []world.ChunkPosition
	for _, pos := range dirty {
		if _, ok := meshes[pos]; !ok {
			stale = append(stale, pos)
		}
	}
	if len(stale) > 0 {
		if err := e.Meshes.Invalidate(ctx, stale...); err != nil {
			logging.Warn("⚠️ Тик %d: сброс кеша мешей: %v", tick, err)
		}
	}
	logging.Debug("🔁 Тик %d: перестроено %d мешей", tick, len(meshes))
}

// storeMeshes кладёт перестроенные меши в кеш. Ошибки кеша не критичны.
func (e *Engine) storeMeshes(ctx context.Context, meshes map[world.ChunkPosition]*world.ChunkMesh) {
	for pos, mesh := range meshes {
		// Чанк успел измениться: этот меш уже не нужен
		if chunk, ok := e.World.Chunk(pos); !ok || chunk.Version() != mesh.Version {
			continue
		}
		if err := e.Meshes.Put(ctx, pos, mesh); err != nil {
			logging.Warn("⚠️ Меш %s не сохранен в кеш: %v", pos, err)
			_ = e.Meshes.Invalidate(ctx, pos)
		}
	}
}
