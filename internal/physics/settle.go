package physics

import (
	"math"

	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

// Радиус поиска свободной ячейки при укладке, в кубических оболочках
const settleSearchRadius = 4

// SettleEligible сообщает, достаточно ли тело замедлилось для укладки:
// по модулю скорости либо по смещению за последний тик. Тело, ещё не
// прожившее ни одного тика, дельты не имеет — свежие осколки не должны
// мгновенно укладываться обратно в только что выбитую ячейку.
func SettleEligible(body *MovingBody) bool {
	if body.FramesAlive == 0 {
		return false
	}
	return body.Speed() < SettleSpeed || body.Pos.DistanceTo(body.LastPos) < SettleDelta
}

// TrySettle пытается уложить тело в решётку: позиция округляется до
// ближайшей ячейки, затем ищется свободная ячейка — сначала целевая,
// потом кубические оболочки радиусов 1..4, в первой непустой оболочке
// берётся евклидово ближайшая к цели. Возвращает ячейку и true при
// успехе; false — тело остаётся свободным и попробует в следующий тик.
func TrySettle(grid *world.VoxelGrid, body *MovingBody) (vec.Vec3i, bool) {
	target := settleTarget(body.Pos)

	cell, ok := findEmptyCell(grid, target)
	if !ok {
		return vec.Vec3i{}, false
	}
	if !grid.SetCell(cell, true) {
		return vec.Vec3i{}, false
	}
	return cell, true
}

// settleTarget переводит непрерывную позицию в адрес ячейки.
// Минус полклетки компенсирует разницу соглашений: позиция тела — его
// центр, адрес ячейки — её угол.
func settleTarget(pos vec.Vec3) vec.Vec3i {
	return vec.Vec3i{
		X: int(math.Round(pos.X - 0.5)),
		Y: int(math.Round(pos.Y - 0.5)),
		Z: int(math.Round(pos.Z - 0.5)),
	}
}

// findEmptyCell возвращает свободную ячейку для укладки около цели
func findEmptyCell(grid *world.VoxelGrid, target vec.Vec3i) (vec.Vec3i, bool) {
	if world.InBounds(target.X, target.Y, target.Z) && !grid.GetCell(target) {
		return target, true
	}

	for r := 1; r <= settleSearchRadius; r++ {
		var best vec.Vec3i
		bestDist := -1.0

		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				for dx := -r; dx <= r; dx++ {
					if maxAbs(dx, dy, dz) != r {
						continue // только поверхность оболочки
					}
					cell := target.Add(vec.Vec3i{X: dx, Y: dy, Z: dz})
					if !world.InBounds(cell.X, cell.Y, cell.Z) {
						continue
					}
					if grid.GetCell(cell) {
						continue
					}
					d := cell.DistanceTo(target)
					if bestDist < 0 || d < bestDist {
						bestDist = d
						best = cell
					}
				}
			}
		}

		if bestDist >= 0 {
			return best, true
		}
	}

	return vec.Vec3i{}, false
}

func maxAbs(values ...int) int {
	m := 0
	for _, v := range values {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
