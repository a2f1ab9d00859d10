package vec

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int
	Y int
	Z int
}

// New создает вектор из трех координат
func New(x, y, z int) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает другой вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Neg возвращает противоположный вектор
func (v Vec3) Neg() Vec3 {
	return Vec3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Scale умножает все координаты на k
func (v Vec3) Scale(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Compare сравнивает векторы лексикографически по (X, Y, Z).
// Возвращает -1, 0 или 1.
func (v Vec3) Compare(other Vec3) int {
	if c := cmpInt(v.X, other.X); c != 0 {
		return c
	}
	if c := cmpInt(v.Y, other.Y); c != 0 {
		return c
	}
	return cmpInt(v.Z, other.Z)
}

// Less сообщает, идет ли v раньше other в лексикографическом порядке
func (v Vec3) Less(other Vec3) bool {
	return v.Compare(other) < 0
}

// FloorDiv делит каждую координату на n с округлением вниз.
// Для отрицательных координат -1/16 == -1, а не 0.
func (v Vec3) FloorDiv(n int) Vec3 {
	return Vec3{X: floorDiv(v.X, n), Y: floorDiv(v.Y, n), Z: floorDiv(v.Z, n)}
}

// Mod возвращает неотрицательный остаток от деления каждой координаты на n
func (v Vec3) Mod(n int) Vec3 {
	return Vec3{X: mod(v.X, n), Y: mod(v.Y, n), Z: mod(v.Z, n)}
}

// InCube проверяет, что все координаты лежат в [0, n)
func (v Vec3) InCube(n int) bool {
	return v.X >= 0 && v.X < n && v.Y >= 0 && v.Y < n && v.Z >= 0 && v.Z < n
}

// DistanceTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return float64(dx*dx + dy*dy + dz*dz)
}

// ToFloat переводит вектор в mgl32.Vec3
func (v Vec3) ToFloat() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// FromFloat округляет каждую координату вниз
func FromFloat(p mgl32.Vec3) Vec3 {
	return Vec3{
		X: int(math.Floor(float64(p.X()))),
		Y: int(math.Floor(float64(p.Y()))),
		Z: int(math.Floor(float64(p.Z()))),
	}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z)
}

func floorDiv(a, n int) int {
	q := a / n
	if (a%n != 0) && ((a < 0) != (n < 0)) {
		q--
	}
	return q
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// cmpInt сравнивает без вычитания, чтобы не переполниться у границ int
func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
