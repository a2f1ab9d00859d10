package world

import (
	"math"

	"github.com/annel0/voxel-engine/internal/util"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Generator заполняет внутреннюю область нового чанка. Вызывается до того,
// как чанк становится видимым другим горутинам, и может вызываться
// параллельно для разных позиций.
type Generator interface {
	Fill(pos ChunkPosition, data View)
}

// GeneratorFunc позволяет использовать функцию как Generator
type GeneratorFunc func(pos ChunkPosition, data View)

// Fill вызывает f
func (f GeneratorFunc) Fill(pos ChunkPosition, data View) {
	f(pos, data)
}

// EmptyGenerator оставляет чанки пустыми
var EmptyGenerator = GeneratorFunc(func(ChunkPosition, View) {})

// GeneratorConfig - параметры ландшафта
type GeneratorConfig struct {
	Seed          int64
	Scale         float64 // Масштаб шума высот
	Amplitude     float64 // Размах высот в вокселях
	BaseHeight    int     // Высота, вокруг которой колеблется поверхность
	SeaLevel      int     // Пустоты ниже уровня заполняются водой
	DirtDepth     int     // Толщина слоя земли под травой
	CaveScale     float64 // Масштаб 3D-шума пещер
	CaveThreshold float64 // Значение 3D-шума, выше которого камень вырезается; 0 отключает пещеры
}

// DefaultGeneratorConfig возвращает параметры по умолчанию
func DefaultGeneratorConfig(seed int64) GeneratorConfig {
	return GeneratorConfig{
		Seed:          seed,
		Scale:         0.03,
		Amplitude:     12,
		BaseHeight:    4,
		SeaLevel:      0,
		DirtDepth:     3,
		CaveScale:     0.08,
		CaveThreshold: 0.72,
	}
}

// ProceduralGenerator строит ландшафт по карте высот из шума Перлина
type ProceduralGenerator struct {
	cfg   GeneratorConfig
	noise *util.Noise
	caves *util.Noise
}

// NewProceduralGenerator создаёт генератор ландшафта
func NewProceduralGenerator(cfg GeneratorConfig) *ProceduralGenerator {
	return &ProceduralGenerator{
		cfg:   cfg,
		noise: util.NewNoise(cfg.Seed),
		// Отдельный сид, чтобы пещеры не повторяли рельеф
		caves: util.NewNoise(cfg.Seed*31 + 17),
	}
}

// Config возвращает параметры генератора
func (g *ProceduralGenerator) Config() GeneratorConfig {
	return g.cfg
}

// SurfaceHeight возвращает мировую высоту верхнего твердого вокселя колонки
func (g *ProceduralGenerator) SurfaceHeight(wx, wz int) int {
	n := g.noise.Noise2D(float64(wx)*g.cfg.Scale, float64(wz)*g.cfg.Scale)
	return g.cfg.BaseHeight + int(math.Floor((n-0.5)*2*g.cfg.Amplitude))
}

// BlockAt возвращает материал в мировой точке
func (g *ProceduralGenerator) BlockAt(wx, wy, wz, surface int) block.BlockID {
	switch {
	case wy > surface:
		if wy <= g.cfg.SeaLevel {
			return block.WaterBlockID
		}
		return block.AirBlockID
	case wy == surface:
		if surface < g.cfg.SeaLevel {
			return block.SandBlockID
		}
		return block.GrassBlockID
	case wy > surface-g.cfg.DirtDepth:
		return block.DirtBlockID
	}

	if g.cfg.CaveThreshold > 0 {
		c := g.caves.Noise3D(float64(wx)*g.cfg.CaveScale, float64(wy)*g.cfg.CaveScale, float64(wz)*g.cfg.CaveScale)
		if c > g.cfg.CaveThreshold {
			return block.AirBlockID
		}
	}
	return block.StoneBlockID
}

// Fill реализует Generator
func (g *ProceduralGenerator) Fill(pos ChunkPosition, data View) {
	size := data.Shape()[0]
	origin := pos.Origin(size)

	for x := 0; x < size; x++ {
		for z := 0; z < size; z++ {
			wx, wz := origin.X+x, origin.Z+z
			surface := g.SurfaceHeight(wx, wz)
			for y := 0; y < size; y++ {
				id := g.BlockAt(wx, origin.Y+y, wz, surface)
				if id != block.AirBlockID {
					data.Set(x, y, z, block.NewVoxel(id))
				}
			}
		}
	}
}
