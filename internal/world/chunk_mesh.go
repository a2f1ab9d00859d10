package world

import "github.com/go-gl/mathgl/mgl32"

// Quad - одна грань вокселя в меше
type Quad struct {
	Center    mgl32.Vec3 `json:"center"`
	Direction Direction  `json:"dir"`
}

// ChunkMesh накапливает квадраты поверхности чанка в виде, пригодном для
// загрузки в GPU: позиции, нормали и индексы треугольников.
// Version - версия данных чанка, из которых построен меш (см. Chunk.Version).
type ChunkMesh struct {
	Version   uint64       `json:"version"`
	Positions []mgl32.Vec3 `json:"positions"`
	Normals   []mgl32.Vec3 `json:"normals"`
	Indices   []uint32     `json:"indices"`
	Quads     []Quad       `json:"quads"`
}

// NewChunkMesh создаёт пустой меш
func NewChunkMesh() *ChunkMesh {
	return &ChunkMesh{}
}

// InsertQuad добавляет единичный квадрат с центром center, смотрящий в
// сторону dir. Два треугольника обходятся против часовой стрелки, если
// смотреть со стороны нормали.
func (m *ChunkMesh) InsertQuad(center mgl32.Vec3, dir Direction) {
	normal := dir.Normal()
	u := quadTangent(dir).Mul(0.5)
	v := normal.Cross(quadTangent(dir)).Mul(0.5)

	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions,
		center.Sub(u).Sub(v),
		center.Add(u).Sub(v),
		center.Add(u).Add(v),
		center.Sub(u).Add(v),
	)
	m.Normals = append(m.Normals, normal, normal, normal, normal)
	m.Indices = append(m.Indices,
		base, base+1, base+2,
		base, base+2, base+3,
	)
	m.Quads = append(m.Quads, Quad{Center: center, Direction: dir})
}

// quadTangent выбирает ось, лежащую в плоскости грани
func quadTangent(dir Direction) mgl32.Vec3 {
	switch {
	case dir.X != 0:
		return mgl32.Vec3{0, 1, 0}
	case dir.Y != 0:
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{1, 0, 0}
}

// QuadCount возвращает число граней
func (m *ChunkMesh) QuadCount() int { return len(m.Quads) }

// VertexCount возвращает число вершин
func (m *ChunkMesh) VertexCount() int { return len(m.Positions) }

// TriangleCount возвращает число треугольников
func (m *ChunkMesh) TriangleCount() int { return len(m.Indices) / 3 }

// IsEmpty сообщает об отсутствии геометрии
func (m *ChunkMesh) IsEmpty() bool { return len(m.Quads) == 0 }
