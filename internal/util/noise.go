package util

import (
	"github.com/aquilax/go-perlin"
)

// NoiseMap — детерминированная карта фрактального шума Перлина.
// Каждый экземпляр несёт собственный генератор: никакого глобального
// состояния, один сид — одна и та же карта.
type NoiseMap struct {
	noise *perlin.Perlin
	scale float64
}

// NewNoiseMap создаёт карту шума: octaves октав, частота удваивается
// на октаву, амплитуда делится пополам (alpha=2, beta=2).
func NewNoiseMap(seed int64, octaves int, scale float64) *NoiseMap {
	alpha := 2.0 // Затухание амплитуды между октавами
	beta := 2.0  // Рост частоты между октавами
	return &NoiseMap{
		noise: perlin.NewPerlin(alpha, beta, int32(octaves), seed),
		scale: scale,
	}
}

// Sample возвращает значение шума в точке, нормализованное к [0,1]
func (n *NoiseMap) Sample(x, z float64) float64 {
	// Значение шума примерно в диапазоне от -1 до 1
	v := (n.noise.Noise2D(x*n.scale, z*n.scale) + 1.0) / 2.0
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}
