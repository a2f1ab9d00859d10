package world

import "github.com/annel0/voxel-engine/internal/vec"

// Повороты на 90° над кубом с ребром n. Каждый поворот - транспонирование
// пары осей и отражение одной оси. Все три имеют порядок 4.

func transposeXY(p vec.Vec3) vec.Vec3 { return vec.Vec3{X: p.Y, Y: p.X, Z: p.Z} }
func transposeXZ(p vec.Vec3) vec.Vec3 { return vec.Vec3{X: p.Z, Y: p.Y, Z: p.X} }
func transposeYZ(p vec.Vec3) vec.Vec3 { return vec.Vec3{X: p.X, Y: p.Z, Z: p.Y} }

func reverseX(n int, p vec.Vec3) vec.Vec3 { return vec.Vec3{X: n - 1 - p.X, Y: p.Y, Z: p.Z} }
func reverseY(n int, p vec.Vec3) vec.Vec3 { return vec.Vec3{X: p.X, Y: n - 1 - p.Y, Z: p.Z} }

// Rotate90XY поворачивает индекс в плоскости XY: (x,y,z) -> (n-1-y, x, z)
func Rotate90XY(n int, p vec.Vec3) vec.Vec3 {
	return reverseX(n, transposeXY(p))
}

// Rotate90XZ поворачивает индекс в плоскости XZ: (x,y,z) -> (n-1-z, y, x)
func Rotate90XZ(n int, p vec.Vec3) vec.Vec3 {
	return reverseX(n, transposeXZ(p))
}

// Rotate90YZ поворачивает индекс в плоскости YZ: (x,y,z) -> (x, n-1-z, y)
func Rotate90YZ(n int, p vec.Vec3) vec.Vec3 {
	return reverseY(n, transposeYZ(p))
}

// IndexTransform отображает индекс куба с ребром n в индекс того же куба
type IndexTransform func(n int, p vec.Vec3) vec.Vec3

// Repeat применяет преобразование times раз
func (f IndexTransform) Repeat(times int) IndexTransform {
	return func(n int, p vec.Vec3) vec.Vec3 {
		for i := 0; i < times; i++ {
			p = f(n, p)
		}
		return p
	}
}

func identity(_ int, p vec.Vec3) vec.Vec3 { return p }

// faceTransforms переводят верхнюю грань (y = n-1) куба в грань нужного
// направления. Применяются к кубу вместе с гало, поэтому слой гало
// переходит в слой гало, а соседний с ним внутренний слой - во внутренний.
var faceTransforms = map[Direction]IndexTransform{
	Up:    identity,
	Down:  IndexTransform(Rotate90XY).Repeat(2),
	West:  Rotate90XY,
	East:  IndexTransform(Rotate90XY).Repeat(3),
	South: Rotate90YZ,
	North: IndexTransform(Rotate90YZ).Repeat(3),
}
