package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMesh_InsertQuad(t *testing.T) {
	for _, dir := range Faces() {
		m := NewChunkMesh()
		center := mgl32.Vec3{2, 3, 4}
		m.InsertQuad(center, dir)

		require.Equal(t, 1, m.QuadCount())
		require.Equal(t, 4, m.VertexCount())
		require.Equal(t, 2, m.TriangleCount())

		normal := dir.Normal()
		var sum mgl32.Vec3
		for i, p := range m.Positions {
			assert.Equal(t, normal, m.Normals[i])
			// Все вершины лежат в плоскости грани
			assert.InDelta(t, 0, p.Sub(center).Dot(normal), 1e-6, "%s", dir)
			assert.InDelta(t, 0.5*0.5*2, p.Sub(center).LenSqr(), 1e-6, "вершины в углах единичного квадрата")
			sum = sum.Add(p)
		}
		assert.True(t, sum.Mul(0.25).ApproxEqual(center), "центр квадрата")

		// Обход против часовой стрелки со стороны нормали
		for tri := 0; tri < 2; tri++ {
			a := m.Positions[m.Indices[tri*3]]
			b := m.Positions[m.Indices[tri*3+1]]
			c := m.Positions[m.Indices[tri*3+2]]
			assert.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(normal), float32(0), "%s треугольник %d", dir, tri)
		}
	}
}

func TestChunkMesh_IndicesOffset(t *testing.T) {
	m := NewChunkMesh()
	m.InsertQuad(mgl32.Vec3{}, Up)
	m.InsertQuad(mgl32.Vec3{1, 0, 0}, East)

	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, m.Indices)
	assert.Equal(t, East, m.Quads[1].Direction)
	assert.False(t, m.IsEmpty())
}
