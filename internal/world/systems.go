package world

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/annel0/voxel-engine/internal/logging"
)

// CubeAround возвращает позиции чанков в кубе с центром center и
// полуребром radius, отсортированные.
func CubeAround(center ChunkPosition, radius int) []ChunkPosition {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]ChunkPosition, 0, side*side*side)
	for x := -radius; x <= radius; x++ {
		for y := -radius; y <= radius; y++ {
			for z := -radius; z <= radius; z++ {
				out = append(out, ChunkPosition{X: center.X + x, Y: center.Y + y, Z: center.Z + z})
			}
		}
	}
	return out
}

// Systems - адаптеры мира для игрового цикла: генерация вокруг игрока,
// пометка и перестроение мешей. Работа распараллеливается пулом воркеров.
type Systems struct {
	world *VoxelWorld
	pool  pond.Pool
}

// NewSystems создаёт системы с пулом из workers воркеров (0 - по числу CPU)
func NewSystems(w *VoxelWorld, workers int) *Systems {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Systems{world: w, pool: pond.NewPool(workers)}
}

// Close дожидается завершения задач и останавливает пул
func (s *Systems) Close() {
	s.pool.StopAndWait()
}

// GenerateAround гарантирует наличие всех чанков в радиусе и возвращает
// число затронутых позиций.
func (s *Systems) GenerateAround(center ChunkPosition, radius int) (int, error) {
	positions := CubeAround(center, radius)
	tasks := make([]pond.Task, 0, len(positions))
	for _, pos := range positions {
		tasks = append(tasks, s.pool.Submit(func() {
			s.world.ChunkAtOrCreate(pos)
		}))
	}
	if err := waitAll(tasks); err != nil {
		return 0, err
	}
	logging.Debug("🌍 Сгенерировано вокруг %s (радиус %d): %d чанков в мире", center, radius, s.world.ChunkCount())
	return len(positions), nil
}

// DirtyAround помечает существующие чанки в радиусе и возвращает их число
func (s *Systems) DirtyAround(center ChunkPosition, radius int) int {
	n := 0
	for _, pos := range CubeAround(center, radius) {
		if _, ok := s.world.Chunk(pos); ok {
			s.world.MarkDirty(pos)
			n++
		}
	}
	return n
}

// RemeshDirty забирает помеченные чанки и строит их меши параллельно
func (s *Systems) RemeshDirty() (map[ChunkPosition]*ChunkMesh, error) {
	positions := s.world.TakeDirty()

	var mu sync.Mutex
	meshes := make(map[ChunkPosition]*ChunkMesh, len(positions))
	tasks := make([]pond.Task, 0, len(positions))
	for _, pos := range positions {
		tasks = append(tasks, s.pool.Submit(func() {
			mesh, ok := s.world.MeshChunk(pos)
			if !ok {
				return
			}
			mu.Lock()
			meshes[pos] = mesh
			mu.Unlock()
		}))
	}
	return meshes, waitAll(tasks)
}

func waitAll(tasks []pond.Task) error {
	var errs []error
	for _, t := range tasks {
		if err := t.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Driver вызывает ApplyVoxelChanges раз в тик
type Driver struct {
	world    *VoxelWorld
	interval time.Duration
	ticks    atomic.Uint64
	onCommit func(tick uint64, stats CommitStats)
}

// NewDriver создаёт драйвер тиков
func NewDriver(w *VoxelWorld, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Driver{world: w, interval: interval}
}

// OnCommit задаёт обработчик, вызываемый после каждой фиксации.
// Вызывать до Run.
func (d *Driver) OnCommit(fn func(tick uint64, stats CommitStats)) {
	d.onCommit = fn
}

// Tick выполняет одну фиксацию
func (d *Driver) Tick(ctx context.Context) CommitStats {
	stats := d.world.ApplyVoxelChangesContext(ctx)
	tick := d.ticks.Add(1)
	if d.onCommit != nil {
		d.onCommit(tick, stats)
	}
	return stats
}

// Ticks возвращает число выполненных тиков
func (d *Driver) Ticks() uint64 {
	return d.ticks.Load()
}

// Run выполняет тики до отмены ctx
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	logging.Info("⏱️ Цикл фиксации запущен: интервал %v", d.interval)
	for {
		select {
		case <-ctx.Done():
			logging.Info("⏹️ Цикл фиксации остановлен после %d тиков", d.Ticks())
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}
