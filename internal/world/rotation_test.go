package world

import (
	"testing"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/stretchr/testify/assert"
)

type cube3 = [3][3][3]int

var rotationControl = cube3{
	{{1, 10, 19}, {2, 11, 20}, {3, 12, 21}},
	{{4, 13, 22}, {5, 14, 23}, {6, 15, 24}},
	{{7, 16, 25}, {8, 17, 26}, {9, 18, 27}},
}

// remap строит куб, в котором ячейка p берется из control[f(p)]
func remap(f IndexTransform) cube3 {
	var out cube3
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			for z := 0; z < 3; z++ {
				p := f(3, vec.New(x, y, z))
				out[x][y][z] = rotationControl[p.X][p.Y][p.Z]
			}
		}
	}
	return out
}

func TestRotate90XY_Table(t *testing.T) {
	expected := cube3{
		{{7, 16, 25}, {4, 13, 22}, {1, 10, 19}},
		{{8, 17, 26}, {5, 14, 23}, {2, 11, 20}},
		{{9, 18, 27}, {6, 15, 24}, {3, 12, 21}},
	}
	assert.Equal(t, expected, remap(Rotate90XY))
}

func TestRotate90XZ_Table(t *testing.T) {
	expected := cube3{
		{{7, 4, 1}, {8, 5, 2}, {9, 6, 3}},
		{{16, 13, 10}, {17, 14, 11}, {18, 15, 12}},
		{{25, 22, 19}, {26, 23, 20}, {27, 24, 21}},
	}
	assert.Equal(t, expected, remap(Rotate90XZ))
}

func TestRotate90YZ_Table(t *testing.T) {
	expected := cube3{
		{{3, 2, 1}, {12, 11, 10}, {21, 20, 19}},
		{{6, 5, 4}, {15, 14, 13}, {24, 23, 22}},
		{{9, 8, 7}, {18, 17, 16}, {27, 26, 25}},
	}
	assert.Equal(t, expected, remap(Rotate90YZ))
}

func TestRotations_OrderFour(t *testing.T) {
	for name, rot := range map[string]IndexTransform{
		"xy": Rotate90XY,
		"xz": Rotate90XZ,
		"yz": Rotate90YZ,
	} {
		for _, n := range []int{1, 2, 3, 5} {
			for x := 0; x < n; x++ {
				for y := 0; y < n; y++ {
					for z := 0; z < n; z++ {
						p := vec.New(x, y, z)
						assert.Equal(t, p, rot.Repeat(4)(n, p), "%s^4 должен быть тождественным (n=%d)", name, n)
						assert.True(t, rot(n, p).InCube(n), "%s не должен выводить за пределы куба", name)
					}
				}
			}
		}
	}
}

func TestRotations_Composition(t *testing.T) {
	// Сопряжение yz поворотом xy дает обратный поворот xz
	xy := IndexTransform(Rotate90XY)
	composed := func(n int, p vec.Vec3) vec.Vec3 {
		return Rotate90XY(n, Rotate90YZ(n, xy.Repeat(3)(n, p)))
	}
	xzInverse := IndexTransform(Rotate90XZ).Repeat(3)

	const n = 4
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				p := vec.New(x, y, z)
				assert.Equal(t, xzInverse(n, p), composed(n, p))
			}
		}
	}
}

func TestFaceTransforms_MapTopFaceToDirection(t *testing.T) {
	const n = 6
	for _, dir := range Faces() {
		rot := faceTransforms[dir]
		for x := 1; x < n-1; x++ {
			for z := 1; z < n-1; z++ {
				p := rot(n, vec.New(x, n-1, z))
				// Точка верхней грани должна оказаться на грани dir
				check := func(c, d int) {
					switch d {
					case 1:
						assert.Equal(t, n-1, c, "направление %s", dir)
					case -1:
						assert.Equal(t, 0, c, "направление %s", dir)
					default:
						assert.True(t, c > 0 && c < n-1, "направление %s", dir)
					}
				}
				check(p.X, dir.X)
				check(p.Y, dir.Y)
				check(p.Z, dir.Z)
			}
		}
	}
}
