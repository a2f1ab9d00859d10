package world

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrChunkPoisoned - чанк был оставлен в неизвестном состоянии паникой,
// случившейся под его блокировкой записи.
var ErrChunkPoisoned = errors.New("chunk poisoned")

// Chunk - куб вокселей с ребром Size, окруженный слоем гало толщиной в
// одну ячейку. Гало дублирует граничные воксели соседних чанков, чтобы
// меширование не заглядывало в соседей.
//
// Внутренний индекс (x, y, z) в [0, Size) хранится по адресу (x+1, y+1, z+1).
type Chunk struct {
	Position ChunkPosition

	size   int
	stride int
	cells  []block.Voxel

	mu       sync.RWMutex
	poisoned atomic.Bool
	version  atomic.Uint64
}

// NewChunk создаёт пустой (полностью прозрачный) чанк
func NewChunk(pos ChunkPosition, size int) *Chunk {
	if size < 1 {
		panic(fmt.Sprintf("world: invalid chunk size %d", size))
	}
	stride := size + 2
	return &Chunk{
		Position: pos,
		size:     size,
		stride:   stride,
		cells:    make([]block.Voxel, stride*stride*stride),
	}
}

// Size возвращает длину ребра внутренней области
func (c *Chunk) Size() int {
	return c.size
}

// index переводит координату куба с гало в адрес массива
func (c *Chunk) index(x, y, z int) int {
	return (x*c.stride+y)*c.stride + z
}

func (c *Chunk) haloAt(p vec.Vec3) block.Voxel {
	return c.cells[c.index(p.X, p.Y, p.Z)]
}

// Data возвращает вид на внутреннюю область Size×Size×Size.
// Вызывающий должен удерживать блокировку чанка (см. Read, Write).
func (c *Chunk) Data() View {
	return View{c: c}
}

// Read выполняет fn под разделяемой блокировкой
func (c *Chunk) Read(fn func(View)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.mustBeHealthy()
	fn(c.Data())
}

// Write выполняет fn под исключительной блокировкой. Паника внутри fn
// помечает чанк как испорченный.
func (c *Chunk) Write(fn func(View)) {
	c.mu.Lock()
	completed := false
	defer func() {
		if !completed {
			c.poisoned.Store(true)
		}
		c.mu.Unlock()
	}()
	c.mustBeHealthy()
	fn(c.Data())
	c.version.Add(1)
	completed = true
}

// Version растёт после каждой записи данных или гало. Меш, построенный
// при той же версии, совпадает с текущим.
func (c *Chunk) Version() uint64 {
	return c.version.Load()
}

// Poisoned сообщает, испорчен ли чанк
func (c *Chunk) Poisoned() bool {
	return c.poisoned.Load()
}

func (c *Chunk) mustBeHealthy() {
	if c.poisoned.Load() {
		panic(fmt.Errorf("%s: %w", c.Position, ErrChunkPoisoned))
	}
}

// SolidCount возвращает число непрозрачных вокселей внутренней области
func (c *Chunk) SolidCount() int {
	n := 0
	for x := 1; x <= c.size; x++ {
		for y := 1; y <= c.size; y++ {
			for z := 1; z <= c.size; z++ {
				if !c.cells[c.index(x, y, z)].IsTransparent() {
					n++
				}
			}
		}
	}
	return n
}

// CopyBorders заполняет гало со стороны dir данными other, где other -
// чанк в позиции Position+dir. Копируется внутренний слой other,
// прилегающий к этому чанку: для Up гало y=Size+1 получает слой y=0 other.
//
// Грани задаются поворотами канонического копирования Up, ребра и углы -
// прямым отображением индексов. Вызывающий удерживает блокировку записи
// этого чанка и блокировку чтения other.
func (c *Chunk) CopyBorders(other *Chunk, dir Direction) {
	if other.size != c.size {
		panic(fmt.Sprintf("world: copy borders between chunk sizes %d and %d", c.size, other.size))
	}
	if !dir.IsValid() {
		panic(fmt.Sprintf("world: unsupported border direction %s", dir))
	}
	if dir.IsFace() {
		c.copyFace(other, faceTransforms[dir])
		return
	}
	c.copyEdgeOrCorner(other, dir)
}

func (c *Chunk) copyFace(other *Chunk, rotate IndexTransform) {
	n := c.stride
	for x := 1; x <= c.size; x++ {
		for z := 1; z <= c.size; z++ {
			dst := rotate(n, vec.Vec3{X: x, Y: n - 1, Z: z})
			src := rotate(n, vec.Vec3{X: x, Y: 1, Z: z})
			c.cells[c.index(dst.X, dst.Y, dst.Z)] = other.haloAt(src)
		}
	}
}

// copyEdgeOrCorner: ячейка гало h получает ячейку other с адресом h - dir*Size
func (c *Chunk) copyEdgeOrCorner(other *Chunk, dir Direction) {
	xs := c.haloRange(dir.X)
	ys := c.haloRange(dir.Y)
	zs := c.haloRange(dir.Z)
	for x := xs[0]; x <= xs[1]; x++ {
		for y := ys[0]; y <= ys[1]; y++ {
			for z := zs[0]; z <= zs[1]; z++ {
				src := other.index(x-dir.X*c.size, y-dir.Y*c.size, z-dir.Z*c.size)
				c.cells[c.index(x, y, z)] = other.cells[src]
			}
		}
	}
}

func (c *Chunk) haloRange(d int) [2]int {
	switch d {
	case 1:
		return [2]int{c.size + 1, c.size + 1}
	case -1:
		return [2]int{0, 0}
	}
	return [2]int{1, c.size}
}

// Mesh строит поверхность чанка: по квадрату на каждую грань непрозрачного
// вокселя, соседом которой является прозрачная ячейка (в том числе гало).
// Координаты локальны для чанка. Вызывающий удерживает блокировку чтения.
func (c *Chunk) Mesh() *ChunkMesh {
	mesh := NewChunkMesh()
	mesh.Version = c.version.Load()
	for x := 0; x < c.size; x++ {
		for y := 0; y < c.size; y++ {
			for z := 0; z < c.size; z++ {
				if c.cells[c.index(x+1, y+1, z+1)].IsTransparent() {
					continue
				}
				center := mgl32.Vec3{float32(x) + 0.5, float32(y) + 0.5, float32(z) + 0.5}
				for _, d := range faces {
					if !c.cells[c.index(x+1+d.X, y+1+d.Y, z+1+d.Z)].IsTransparent() {
						continue
					}
					mesh.InsertQuad(center.Add(d.Normal().Mul(0.5)), d)
				}
			}
		}
	}
	return mesh
}

// View - окно на внутреннюю область чанка. Выход за [0, Size) вызывает
// панику, поэтому гало через View недоступно.
type View struct {
	c *Chunk
}

// Shape возвращает размеры внутренней области
func (v View) Shape() [3]int {
	return [3]int{v.c.size, v.c.size, v.c.size}
}

// At возвращает воксель по внутреннему индексу
func (v View) At(x, y, z int) block.Voxel {
	v.check(x, y, z)
	return v.c.cells[v.c.index(x+1, y+1, z+1)]
}

// Set записывает воксель по внутреннему индексу
func (v View) Set(x, y, z int, vox block.Voxel) {
	v.check(x, y, z)
	v.c.cells[v.c.index(x+1, y+1, z+1)] = vox
}

// AtVec и SetVec - то же самое для vec.Vec3
func (v View) AtVec(p vec.Vec3) block.Voxel { return v.At(p.X, p.Y, p.Z) }

func (v View) SetVec(p vec.Vec3, vox block.Voxel) { v.Set(p.X, p.Y, p.Z, vox) }

// Fill заполняет всю внутреннюю область одним вокселем
func (v View) Fill(vox block.Voxel) {
	for x := 0; x < v.c.size; x++ {
		for y := 0; y < v.c.size; y++ {
			for z := 0; z < v.c.size; z++ {
				v.c.cells[v.c.index(x+1, y+1, z+1)] = vox
			}
		}
	}
}

func (v View) check(x, y, z int) {
	n := v.c.size
	if x < 0 || x >= n || y < 0 || y >= n || z < 0 || z >= n {
		panic(fmt.Sprintf("world: interior index (%d,%d,%d) out of range for chunk size %d", x, y, z, n))
	}
}
