package util

import (
	"github.com/aquilax/go-perlin"
)

// Параметры шума по умолчанию
const (
	DefaultAlpha   = 2.0 // Сглаживание шума
	DefaultBeta    = 2.0 // Частота шума
	DefaultOctaves = 3   // Количество октав
)

// Noise - детерминированный шум Перлина для заданного сида.
// Таблицы перестановок только читаются, поэтому безопасен для
// параллельного использования.
type Noise struct {
	seed   int64
	perlin *perlin.Perlin
}

// NewNoise создаёт генератор шума с параметрами по умолчанию
func NewNoise(seed int64) *Noise {
	return NewNoiseWithParams(seed, DefaultAlpha, DefaultBeta, DefaultOctaves)
}

// NewNoiseWithParams создаёт генератор шума с явными параметрами
func NewNoiseWithParams(seed int64, alpha, beta float64, octaves int32) *Noise {
	return &Noise{
		seed:   seed,
		perlin: perlin.NewPerlin(alpha, beta, octaves, seed),
	}
}

// Seed возвращает сид генератора
func (n *Noise) Seed() int64 {
	return n.seed
}

// Noise2D возвращает значение шума в диапазоне [0, 1]
func (n *Noise) Noise2D(x, y float64) float64 {
	return clamp01((n.perlin.Noise2D(x, y) + 1.0) / 2.0)
}

// Noise3D возвращает значение шума в диапазоне [0, 1]
func (n *Noise) Noise3D(x, y, z float64) float64 {
	return clamp01((n.perlin.Noise3D(x, y, z) + 1.0) / 2.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
