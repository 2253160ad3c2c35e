package world

import (
	"math/rand"
)

// Параметры дерева: ствол и сферическая крона
const (
	trunkMinHeight  = 4
	trunkMaxHeight  = 6
	canopyMinRadius = 2
	canopyMaxRadius = 3
	canopyRagged    = 0.15 // Вероятность пропуска ячейки на краю кроны
)

// PlantTree ставит дерево на колонку: ствол высотой 4..6 ячеек от уровня
// земли groundY и сферическую крону радиусом 2..3 вокруг вершины ствола.
// Край кроны слегка рваный, чтобы деревья не выглядели штампованными.
// Возвращает false, если дерево не поместилось в границы мира.
func PlantTree(grid *VoxelGrid, x, groundY, z int, rng *rand.Rand) bool {
	trunkH := trunkMinHeight + rng.Intn(trunkMaxHeight-trunkMinHeight+1)
	radius := canopyMinRadius + rng.Intn(canopyMaxRadius-canopyMinRadius+1)

	topY := groundY + trunkH
	if !InBounds(x, topY+radius, z) || !InBounds(x, groundY, z) {
		return false
	}

	// Ствол
	for y := groundY; y < topY; y++ {
		grid.Set(x, y, z, true)
	}

	// Крона: ячейки внутри сферы радиуса radius вокруг вершины ствола
	r := float64(radius)
	for dy := -radius; dy <= radius; dy++ {
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				distSq := float64(dx*dx + dy*dy + dz*dz)
				if distSq > (r+0.3)*(r+0.3) {
					continue
				}
				// Рваный край: внешний слой кроны прореживается
				if distSq > (r-0.5)*(r-0.5) && rng.Float64() < canopyRagged {
					continue
				}
				grid.Set(x+dx, topY+dy, z+dz, true)
			}
		}
	}

	return true
}
