package world

import (
	"fmt"
	"strings"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// Direction - единичное смещение к соседнему чанку. Каждая компонента
// лежит в {-1, 0, 1}, нулевое смещение недопустимо.
//
// Шесть граней: Up/Down по Y, East/West по X, South/North по Z.
// Ребра и углы получаются через Combine (например, Up.Combine(East)).
type Direction struct {
	X, Y, Z int
}

var (
	Up    = Direction{0, 1, 0}
	Down  = Direction{0, -1, 0}
	East  = Direction{1, 0, 0}
	West  = Direction{-1, 0, 0}
	South = Direction{0, 0, 1}
	North = Direction{0, 0, -1}
)

var faces = [6]Direction{Up, Down, East, West, South, North}

var allDirections = func() []Direction {
	dirs := make([]Direction, 0, 26)
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				dirs = append(dirs, Direction{x, y, z})
			}
		}
	}
	return dirs
}()

// Faces возвращает шесть направлений граней
func Faces() [6]Direction {
	return faces
}

// AllDirections возвращает все 26 направлений (грани, ребра, углы)
// в детерминированном порядке.
func AllDirections() []Direction {
	out := make([]Direction, len(allDirections))
	copy(out, allDirections)
	return out
}

// Combine объединяет направления по осям. Компоненты, заданные в обоих
// направлениях, должны совпадать, иначе паника.
func (d Direction) Combine(other Direction) Direction {
	return Direction{
		X: combineAxis(d.X, other.X),
		Y: combineAxis(d.Y, other.Y),
		Z: combineAxis(d.Z, other.Z),
	}
}

func combineAxis(a, b int) int {
	switch {
	case a == 0:
		return b
	case b == 0 || a == b:
		return a
	}
	panic(fmt.Sprintf("world: cannot combine opposite axis components %d and %d", a, b))
}

// Invert возвращает противоположное направление
func (d Direction) Invert() Direction {
	return Direction{-d.X, -d.Y, -d.Z}
}

// IsZero сообщает о нулевом (недопустимом) направлении
func (d Direction) IsZero() bool {
	return d.X == 0 && d.Y == 0 && d.Z == 0
}

// IsValid проверяет, что направление ненулевое и единичное по осям
func (d Direction) IsValid() bool {
	return !d.IsZero() && unit(d.X) && unit(d.Y) && unit(d.Z)
}

// Axes - количество ненулевых компонент: 1 для грани, 2 для ребра, 3 для угла
func (d Direction) Axes() int {
	n := 0
	for _, c := range [3]int{d.X, d.Y, d.Z} {
		if c != 0 {
			n++
		}
	}
	return n
}

// IsFace сообщает, является ли направление одной из шести граней
func (d Direction) IsFace() bool {
	return d.IsValid() && d.Axes() == 1
}

// Vec возвращает смещение как целочисленный вектор
func (d Direction) Vec() vec.Vec3 {
	return vec.Vec3{X: d.X, Y: d.Y, Z: d.Z}
}

// Normal возвращает смещение как mgl32.Vec3
func (d Direction) Normal() mgl32.Vec3 {
	return mgl32.Vec3{float32(d.X), float32(d.Y), float32(d.Z)}
}

func (d Direction) String() string {
	if d.IsZero() {
		return "none"
	}
	var parts []string
	switch d.Y {
	case 1:
		parts = append(parts, "up")
	case -1:
		parts = append(parts, "down")
	}
	switch d.X {
	case 1:
		parts = append(parts, "east")
	case -1:
		parts = append(parts, "west")
	}
	switch d.Z {
	case 1:
		parts = append(parts, "south")
	case -1:
		parts = append(parts, "north")
	}
	if !d.IsValid() {
		return fmt.Sprintf("invalid(%d,%d,%d)", d.X, d.Y, d.Z)
	}
	return strings.Join(parts, "|")
}

func unit(c int) bool {
	return c >= -1 && c <= 1
}
