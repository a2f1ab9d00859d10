package world

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/annel0/voxel-engine/internal/world"

// Config - параметры мира
type Config struct {
	ChunkSize int // Длина ребра чанка в вокселях
	// DiagonalBorders включает копирование ребер и углов гало
	// в соседей по диагонали.
	DiagonalBorders bool
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{ChunkSize: 16, DiagonalBorders: true}
}

// VoxChange - отложенная запись вокселя
type VoxChange struct {
	Local vec.Vec3
	Voxel block.Voxel
}

// changeQueue - FIFO правок одного чанка
type changeQueue struct {
	mu      sync.Mutex
	changes []VoxChange
}

func (q *changeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// borderUpdate - грань (ребро, угол) чанка Source, изменившаяся при фиксации
type borderUpdate struct {
	Source ChunkPosition
	Dir    Direction
}

// CommitStats - итог одной фиксации
type CommitStats struct {
	ChunksEdited      int `json:"chunks_edited"`
	ChangesApplied    int `json:"changes_applied"`
	BordersPropagated int `json:"borders_propagated"`
	BordersSynced     int `json:"borders_synced"`
	ChunksDirtied     int `json:"chunks_dirtied"`
}

// VoxelWorld - разреженная карта чанков с отложенными правками.
//
// Чтение и постановка правок в очередь могут выполняться из любого числа
// горутин. ApplyVoxelChanges - единственная операция, изменяющая данные
// нескольких чанков; вызывается один раз на тик. Глобальной блокировки
// мира нет: каждый чанк защищен своей RWMutex, каждая очередь - своей Mutex.
type VoxelWorld struct {
	cfg       Config
	generator Generator

	chunks  sync.Map // ChunkPosition -> *Chunk
	pending sync.Map // ChunkPosition -> *changeQueue
	dirty   sync.Map // ChunkPosition -> struct{}
	fresh   sync.Map // ChunkPosition -> struct{}, сгенерированы после прошлой фиксации

	loaded     atomic.Int64
	dirtyCount atomic.Int64

	commitMu sync.Mutex

	metrics *Metrics
	bus     eventbus.EventBus
	tracer  trace.Tracer
}

// NewVoxelWorld создаёт пустой мир. Чанки генерируются лениво при первом
// обращении.
func NewVoxelWorld(cfg Config, generator Generator) *VoxelWorld {
	if cfg.ChunkSize < 1 {
		panic(fmt.Sprintf("world: invalid chunk size %d", cfg.ChunkSize))
	}
	if generator == nil {
		generator = EmptyGenerator
	}
	return &VoxelWorld{
		cfg:       cfg,
		generator: generator,
		tracer:    otel.Tracer(tracerName),
	}
}

// SetMetrics подключает метрики. Вызывать до начала работы с миром.
func (w *VoxelWorld) SetMetrics(m *Metrics) {
	w.metrics = m
}

// SetEventBus подключает шину событий. Вызывать до начала работы с миром.
func (w *VoxelWorld) SetEventBus(bus eventbus.EventBus) {
	w.bus = bus
}

// ChunkSize возвращает длину ребра чанка
func (w *VoxelWorld) ChunkSize() int {
	return w.cfg.ChunkSize
}

// Config возвращает параметры мира
func (w *VoxelWorld) Config() Config {
	return w.cfg
}

// Chunk возвращает чанк, если он уже существует
func (w *VoxelWorld) Chunk(pos ChunkPosition) (*Chunk, bool) {
	c, ok := w.chunks.Load(pos)
	if !ok {
		return nil, false
	}
	return c.(*Chunk), true
}

// ChunkAtOrCreate возвращает чанк, генерируя его при отсутствии.
// Генерация идет вне всех блокировок; при гонке двух генераторов в карту
// попадает первый вставленный чанк, второй отбрасывается. Незаполненный
// чанк никогда не становится видимым.
func (w *VoxelWorld) ChunkAtOrCreate(pos ChunkPosition) *Chunk {
	if c, ok := w.Chunk(pos); ok {
		return c
	}

	chunk := NewChunk(pos, w.cfg.ChunkSize)
	w.generator.Fill(pos, chunk.Data())
	solid := chunk.SolidCount()

	actual, loaded := w.chunks.LoadOrStore(pos, chunk)
	if loaded {
		return actual.(*Chunk)
	}

	n := w.loaded.Add(1)
	w.fresh.Store(pos, struct{}{})
	w.MarkDirty(pos)
	w.metrics.chunkGenerated(int(n))
	logging.Trace("🧱 Сгенерирован %s (%d твердых вокселей)", pos, solid)
	w.publish(context.Background(), EventChunkGenerated, 1, ChunkGeneratedEvent{Position: pos, SolidVoxels: solid})
	return chunk
}

// ChunkCount возвращает число чанков в памяти
func (w *VoxelWorld) ChunkCount() int {
	return int(w.loaded.Load())
}

// Positions возвращает отсортированный список позиций загруженных чанков
func (w *VoxelWorld) Positions() []ChunkPosition {
	var out []ChunkPosition
	w.chunks.Range(func(k, _ any) bool {
		out = append(out, k.(ChunkPosition))
		return true
	})
	SortPositions(out)
	return out
}

// VoxelAt читает воксель под разделяемой блокировкой чанка. Правки,
// стоящие в очереди, не видны до ApplyVoxelChanges.
func (w *VoxelWorld) VoxelAt(pos ChunkPosition, local vec.Vec3) block.Voxel {
	chunk := w.ChunkAtOrCreate(pos)
	var v block.Voxel
	chunk.Read(func(data View) {
		v = data.AtVec(local)
	})
	return v
}

// VoxelAtBlock читает воксель по мировой целочисленной координате
func (w *VoxelWorld) VoxelAtBlock(p vec.Vec3) block.Voxel {
	pos, local := WorldToChunk(p, w.cfg.ChunkSize)
	return w.VoxelAt(pos, local)
}

// VoxelAtPos читает воксель, содержащий точку p
func (w *VoxelWorld) VoxelAtPos(p mgl32.Vec3) block.Voxel {
	return w.VoxelAtBlock(vec.FromFloat(p))
}

// SetVoxelAt ставит запись в очередь чанка. Данные чанка не меняются
// до следующего ApplyVoxelChanges.
func (w *VoxelWorld) SetVoxelAt(pos ChunkPosition, local vec.Vec3, v block.Voxel) {
	if !local.InCube(w.cfg.ChunkSize) {
		panic(fmt.Sprintf("world: local index %s out of range for chunk size %d", local, w.cfg.ChunkSize))
	}
	q := w.queue(pos)
	q.mu.Lock()
	q.changes = append(q.changes, VoxChange{Local: local, Voxel: v})
	q.mu.Unlock()
	w.metrics.changeQueued()
}

// SetVoxelAtBlock ставит запись по мировой целочисленной координате
func (w *VoxelWorld) SetVoxelAtBlock(p vec.Vec3, v block.Voxel) {
	pos, local := WorldToChunk(p, w.cfg.ChunkSize)
	w.SetVoxelAt(pos, local, v)
}

// SetVoxelAtPos ставит запись для вокселя, содержащего точку p
func (w *VoxelWorld) SetVoxelAtPos(p mgl32.Vec3, v block.Voxel) {
	w.SetVoxelAtBlock(vec.FromFloat(p), v)
}

// PendingChanges возвращает число правок в очереди чанка
func (w *VoxelWorld) PendingChanges(pos ChunkPosition) int {
	q, ok := w.pending.Load(pos)
	if !ok {
		return 0
	}
	return q.(*changeQueue).len()
}

func (w *VoxelWorld) queue(pos ChunkPosition) *changeQueue {
	if q, ok := w.pending.Load(pos); ok {
		return q.(*changeQueue)
	}
	q, _ := w.pending.LoadOrStore(pos, &changeQueue{})
	return q.(*changeQueue)
}

// ApplyVoxelChanges фиксирует все правки, накопленные с прошлого вызова
func (w *VoxelWorld) ApplyVoxelChanges() CommitStats {
	return w.ApplyVoxelChangesContext(context.Background())
}

// ApplyVoxelChangesContext - то же, что ApplyVoxelChanges; ctx используется
// только для трассировки и публикации событий.
//
// Фазы:
//  1. правки каждого чанка применяются под его блокировкой записи и
//     блокировкой очереди; изменившиеся грани запоминаются;
//  2. для каждой изменившейся грани гало соседа обновляется из источника:
//     чтение источника, затем запись соседа, по одной паре за раз;
//  3. чанки, сгенерированные после прошлой фиксации, обмениваются гало
//     с уже существующими соседями.
func (w *VoxelWorld) ApplyVoxelChangesContext(ctx context.Context) CommitStats {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "world.ApplyVoxelChanges")
	defer span.End()

	var stats CommitStats
	touched := make(map[ChunkPosition]struct{})

	borders := w.applyPending(&stats, touched)
	w.propagateBorders(borders, &stats, touched)
	w.syncFreshChunks(&stats, touched)
	stats.ChunksDirtied = len(touched)

	span.SetAttributes(
		attribute.Int("voxel.chunks_edited", stats.ChunksEdited),
		attribute.Int("voxel.changes_applied", stats.ChangesApplied),
		attribute.Int("voxel.borders_propagated", stats.BordersPropagated),
		attribute.Int("voxel.borders_synced", stats.BordersSynced),
	)
	w.metrics.commitFinished(stats, int(w.dirtyCount.Load()), time.Since(start))

	if len(touched) > 0 {
		dirty := make([]ChunkPosition, 0, len(touched))
		for pos := range touched {
			dirty = append(dirty, pos)
		}
		SortPositions(dirty)
		logging.Debug("✅ Фиксация: %d правок в %d чанках, %d копий гало, %d синхронизаций, %d чанков к перестроению",
			stats.ChangesApplied, stats.ChunksEdited, stats.BordersPropagated, stats.BordersSynced, len(dirty))
		w.publish(ctx, EventChunksCommitted, 3, ChunksCommittedEvent{Stats: stats, Dirty: dirty})
	}
	return stats
}

func (w *VoxelWorld) applyPending(stats *CommitStats, touched map[ChunkPosition]struct{}) map[borderUpdate]struct{} {
	var positions []ChunkPosition
	w.pending.Range(func(k, v any) bool {
		if v.(*changeQueue).len() > 0 {
			positions = append(positions, k.(ChunkPosition))
		}
		return true
	})
	SortPositions(positions)

	borders := make(map[borderUpdate]struct{})
	for _, pos := range positions {
		q := w.queue(pos)
		chunk := w.ChunkAtOrCreate(pos)

		applied := 0
		chunk.Write(func(data View) {
			q.mu.Lock()
			defer q.mu.Unlock()

			for _, ch := range q.changes {
				data.SetVec(ch.Local, ch.Voxel)
				w.recordBorders(pos, ch.Local, borders)
			}
			applied = len(q.changes)
			q.changes = nil
		})
		if applied == 0 {
			continue
		}

		stats.ChunksEdited++
		stats.ChangesApplied += applied
		touched[pos] = struct{}{}
		w.MarkDirty(pos)
	}
	return borders
}

// recordBorders запоминает направления, в которых граничная ячейка local
// дублируется в гало соседей: каждую грань отдельно, а при DiagonalBorders
// также ребра и углы.
func (w *VoxelWorld) recordBorders(pos ChunkPosition, local vec.Vec3, borders map[borderUpdate]struct{}) {
	last := w.cfg.ChunkSize - 1
	axis := func(c int) []int {
		out := []int{0}
		if c == 0 {
			out = append(out, -1)
		}
		if c == last {
			out = append(out, 1)
		}
		return out
	}

	for _, dx := range axis(local.X) {
		for _, dy := range axis(local.Y) {
			for _, dz := range axis(local.Z) {
				d := Direction{dx, dy, dz}
				switch axes := d.Axes(); {
				case axes == 0:
					continue
				case axes > 1 && !w.cfg.DiagonalBorders:
					continue
				}
				borders[borderUpdate{Source: pos, Dir: d}] = struct{}{}
			}
		}
	}
}

func (w *VoxelWorld) propagateBorders(borders map[borderUpdate]struct{}, stats *CommitStats, touched map[ChunkPosition]struct{}) {
	updates := make([]borderUpdate, 0, len(borders))
	for u := range borders {
		updates = append(updates, u)
	}
	sort.Slice(updates, func(i, j int) bool {
		if c := updates[i].Source.Compare(updates[j].Source); c != 0 {
			return c < 0
		}
		return updates[i].Dir.Vec().Less(updates[j].Dir.Vec())
	})

	for _, u := range updates {
		source := w.ChunkAtOrCreate(u.Source)
		target := w.ChunkAtOrCreate(u.Source.Add(u.Dir))
		copyBorder(target, source, u.Dir.Invert())

		stats.BordersPropagated++
		touched[target.Position] = struct{}{}
		w.MarkDirty(target.Position)
	}
}

func (w *VoxelWorld) syncFreshChunks(stats *CommitStats, touched map[ChunkPosition]struct{}) {
	var fresh []ChunkPosition
	w.fresh.Range(func(k, _ any) bool {
		fresh = append(fresh, k.(ChunkPosition))
		return true
	})
	SortPositions(fresh)

	dirs := allDirections
	if !w.cfg.DiagonalBorders {
		dirs = faces[:]
	}

	for _, pos := range fresh {
		w.fresh.Delete(pos)
		chunk, ok := w.Chunk(pos)
		if !ok {
			continue
		}
		for _, d := range dirs {
			neighbor, ok := w.Chunk(pos.Add(d))
			if !ok {
				continue
			}
			copyBorder(chunk, neighbor, d)
			copyBorder(neighbor, chunk, d.Invert())
			stats.BordersSynced += 2

			touched[pos] = struct{}{}
			touched[neighbor.Position] = struct{}{}
			w.MarkDirty(pos)
			w.MarkDirty(neighbor.Position)
		}
	}
}

// copyBorder копирует грань source в гало target со стороны dir.
// Держит чтение source и запись target; обе блокировки снимаются до выхода.
func copyBorder(target, source *Chunk, dir Direction) {
	source.Read(func(View) {
		target.Write(func(View) {
			target.CopyBorders(source, dir)
		})
	})
}

// MarkDirty помечает чанк как требующий перестроения меша
func (w *VoxelWorld) MarkDirty(pos ChunkPosition) {
	if _, loaded := w.dirty.LoadOrStore(pos, struct{}{}); !loaded {
		w.metrics.dirtyCount(int(w.dirtyCount.Add(1)))
	}
}

// IsDirty сообщает, помечен ли чанк
func (w *VoxelWorld) IsDirty(pos ChunkPosition) bool {
	_, ok := w.dirty.Load(pos)
	return ok
}

// DirtyChunks возвращает отсортированный снимок помеченных чанков
func (w *VoxelWorld) DirtyChunks() []ChunkPosition {
	var out []ChunkPosition
	w.dirty.Range(func(k, _ any) bool {
		out = append(out, k.(ChunkPosition))
		return true
	})
	SortPositions(out)
	return out
}

// TakeDirty забирает и очищает помеченные чанки
func (w *VoxelWorld) TakeDirty() []ChunkPosition {
	var out []ChunkPosition
	w.dirty.Range(func(k, _ any) bool {
		if _, loaded := w.dirty.LoadAndDelete(k); loaded {
			out = append(out, k.(ChunkPosition))
			w.dirtyCount.Add(-1)
		}
		return true
	})
	w.metrics.dirtyCount(int(w.dirtyCount.Load()))
	SortPositions(out)
	return out
}

// MeshChunk строит меш существующего чанка под блокировкой чтения
func (w *VoxelWorld) MeshChunk(pos ChunkPosition) (*ChunkMesh, bool) {
	chunk, ok := w.Chunk(pos)
	if !ok {
		return nil, false
	}
	var mesh *ChunkMesh
	chunk.Read(func(View) {
		mesh = chunk.Mesh()
	})
	return mesh, true
}

func (w *VoxelWorld) publish(ctx context.Context, eventType string, priority int, payload any) {
	if w.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(EventSource, eventType, payload)
	if err != nil {
		logging.Warn("⚠️ Событие %s не сериализовано: %v", eventType, err)
		return
	}
	ev.Priority = priority
	if err := w.bus.Publish(ctx, ev); err != nil {
		logging.Warn("⚠️ Событие %s не опубликовано: %v", eventType, err)
	}
}
