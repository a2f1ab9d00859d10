package world

import (
	"fmt"
	"sort"

	"github.com/annel0/voxel-engine/internal/vec"
)

// ChunkPosition - координаты чанка в сетке чанков (не в вокселях).
// Используется как ключ карты; упорядочивается лексикографически по (X, Y, Z).
type ChunkPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// NewChunkPosition создает позицию чанка
func NewChunkPosition(x, y, z int) ChunkPosition {
	return ChunkPosition{X: x, Y: y, Z: z}
}

// Vec возвращает позицию как целочисленный вектор
func (p ChunkPosition) Vec() vec.Vec3 {
	return vec.Vec3{X: p.X, Y: p.Y, Z: p.Z}
}

// Add возвращает позицию соседнего чанка в направлении d
func (p ChunkPosition) Add(d Direction) ChunkPosition {
	return ChunkPosition{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
}

// Compare сравнивает позиции лексикографически
func (p ChunkPosition) Compare(other ChunkPosition) int {
	return p.Vec().Compare(other.Vec())
}

// Less сообщает, идет ли p раньше other
func (p ChunkPosition) Less(other ChunkPosition) bool {
	return p.Compare(other) < 0
}

// Origin возвращает мировую координату вокселя (0,0,0) этого чанка
func (p ChunkPosition) Origin(chunkSize int) vec.Vec3 {
	return p.Vec().Scale(chunkSize)
}

func (p ChunkPosition) String() string {
	return fmt.Sprintf("chunk(%d,%d,%d)", p.X, p.Y, p.Z)
}

// SortPositions сортирует позиции на месте
func SortPositions(ps []ChunkPosition) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
}

// WorldToChunk разбивает мировую координату вокселя на позицию чанка
// и локальный индекс внутри него (деление с округлением вниз).
func WorldToChunk(world vec.Vec3, chunkSize int) (ChunkPosition, vec.Vec3) {
	c := world.FloorDiv(chunkSize)
	return ChunkPosition{X: c.X, Y: c.Y, Z: c.Z}, world.Mod(chunkSize)
}
