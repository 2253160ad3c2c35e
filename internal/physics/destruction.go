package physics

import (
	"math/rand"

	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

// Параметры разрушения рельефа
const (
	destructRadius       = 3.0 // Радиус сферы разрушения в ячейках
	destructChance       = 0.7 // Базовая вероятность выбивания при forceRatio = 1
	destructOutwardScale = 0.8 // Доля скорости удара, уходящая в разлёт наружу
	destructVelCarry     = 0.3 // Доля скорости ударившего тела, переносимая осколкам
	destructUpwardBias   = 8.0 // Фиксированная подкидка осколков вверх
)

// DebrisSpawn описывает осколок, который нужно добавить в мир после разрушения
type DebrisSpawn struct {
	Pos vec.Vec3
	Vel vec.Vec3
}

// DestroyTerrain выбивает ячейки рельефа вокруг точки удара.
// Сама ячейка удара уничтожается безусловно и в пыль — без осколка.
// Соседние занятые ячейки в сфере радиуса destructRadius выбиваются с
// вероятностью forceRatio×0.7, где forceRatio спадает линейно от единицы
// в центре до нуля на краю сферы. Каждый выбитый воксель получает
// скорость наружу от точки удара, долю скорости ударившего тела и
// подкидку вверх — получается направленная воронка, а не равномерный
// разлёт.
func DestroyTerrain(grid *world.VoxelGrid, impact vec.Vec3i, impactVel vec.Vec3, speed float64, rng *rand.Rand) []DebrisSpawn {
	grid.SetCell(impact, false)

	var spawns []DebrisSpawn
	impactCenter := impact.Center()
	carried := impactVel.Mul(destructVelCarry)

	r := int(destructRadius)
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				cell := impact.Add(vec.Vec3i{X: dx, Y: dy, Z: dz})
				dist := cell.DistanceTo(impact)
				if dist > destructRadius || dist <= 0.5 {
					continue
				}
				if !grid.GetCell(cell) {
					continue
				}

				forceRatio := 1 - dist/destructRadius
				if forceRatio < 0 {
					forceRatio = 0
				}
				if rng.Float64() >= forceRatio*destructChance {
					continue
				}

				grid.SetCell(cell, false)

				center := cell.Center()
				outward := center.Sub(impactCenter).Normalized()
				vel := outward.Mul(speed * forceRatio * destructOutwardScale).
					Add(carried).
					Add(vec.Vec3{Y: destructUpwardBias})

				spawns = append(spawns, DebrisSpawn{Pos: center, Vel: vel})
			}
		}
	}

	return spawns
}
