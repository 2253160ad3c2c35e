package physics

import (
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

const (
	// Число делений интервала при бинарном поиске момента столкновения
	sweepIterations = 20

	// Отступ от найденного момента, чтобы тело не легло ровно на границу
	sweepEpsilon = 0.001
)

// Оси столкновения
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
)

// Контрольные точки тела в долях полуразмера: 8 углов, 6 центров граней,
// центр. Выборка консервативна — у рёбер возможны ложные срабатывания,
// это принятое поведение, а не дефект.
var sampleOffsets = [15][3]float64{
	{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
	{0, 0, 0},
}

// ValidAt проверяет, свободна ли позиция для тела с полуразмером size:
// позиция валидна, когда ни одна контрольная точка не попадает в занятую
// ячейку решётки.
func ValidAt(grid *world.VoxelGrid, pos vec.Vec3, size float64) bool {
	for _, o := range sampleOffsets {
		c := vec.Vec3{
			X: pos.X + o[0]*size,
			Y: pos.Y + o[1]*size,
			Z: pos.Z + o[2]*size,
		}.ToVec3i()
		if grid.Get(c.X, c.Y, c.Z) {
			return false
		}
	}
	return true
}

// ImpactInfo описывает удар тела о рельеф: ячейка, ось, скорость и
// вектор скорости в момент контакта (до отклика).
type ImpactInfo struct {
	Cell     vec.Vec3i
	Axis     int
	Speed    float64
	Velocity vec.Vec3
}

// SweepMove продвигает тело на один тик с учётом пути, а не только
// конечной точки. Если конечная позиция валидна, тело просто переносится.
// Иначе бинарным поиском находится последний валидный момент t ∈ [0, dt],
// тело ставится чуть раньше него, определяется ось удара и применяется
// осевой отклик: отскок с затуханием либо остановка по оси.
// Возвращает информацию об ударе для запуска разрушения рельефа.
func SweepMove(grid *world.VoxelGrid, body *MovingBody, dt float64) (ImpactInfo, bool) {
	start := body.Pos
	end := start.Add(body.Vel.Mul(dt))

	if ValidAt(grid, end, body.Size) {
		body.Pos = end
		return ImpactInfo{}, false
	}

	// Стартовая позиция сама может оказаться невалидной (тело зажато
	// после чужих мутаций рельефа) — тогда не двигаемся, но отклик
	// по оси всё равно разрешаем от текущей точки.
	lo, hi := 0.0, dt
	if !ValidAt(grid, start, body.Size) {
		lo, hi = 0.0, 0.0
	}

	for i := 0; i < sweepIterations; i++ {
		mid := (lo + hi) / 2
		if ValidAt(grid, start.Add(body.Vel.Mul(mid)), body.Size) {
			lo = mid
		} else {
			hi = mid
		}
	}

	t := lo - sweepEpsilon
	if t < 0 {
		t = 0
	}
	body.Pos = start.Add(body.Vel.Mul(t))

	// Ось удара определяется по ближайшей занятой соседней ячейке
	// слегка невалидной пробной позиции.
	probe := start.Add(body.Vel.Mul(hi))
	cell, ok := nearestSolidNeighbor(grid, probe)
	if !ok {
		// Защитный случай: широкая выборка сочла позицию невалидной,
		// но занятой ячейки рядом не нашлось — отклик не применяется,
		// скорость сохраняется.
		return ImpactInfo{}, false
	}

	impact := ImpactInfo{
		Cell:     cell,
		Axis:     deepestFaceAxis(probe, body.Size, cell),
		Speed:    body.Vel.Length(),
		Velocity: body.Vel,
	}

	applyAxisResponse(body, impact.Axis)
	return impact, true
}

// nearestSolidNeighbor ищет занятую ячейку, ближайшую к пробной позиции,
// среди ячейки самой позиции и её 26 соседей.
func nearestSolidNeighbor(grid *world.VoxelGrid, probe vec.Vec3) (vec.Vec3i, bool) {
	base := probe.ToVec3i()
	var best vec.Vec3i
	bestDist := -1.0

	for dy := -1; dy <= 1; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				c := base.Add(vec.Vec3i{X: dx, Y: dy, Z: dz})
				if !grid.GetCell(c) {
					continue
				}
				d := probe.DistanceSqTo(c.Center())
				if bestDist < 0 || d < bestDist {
					bestDist = d
					best = c
				}
			}
		}
	}

	return best, bestDist >= 0
}

// deepestFaceAxis выбирает ось удара: из шести перекрытий граней тела и
// ячейки берётся наибольшее; при равенстве побеждает более ранняя ось
// в порядке X, Y, Z.
func deepestFaceAxis(probe vec.Vec3, size float64, cell vec.Vec3i) int {
	bodyMin := probe.Sub(vec.Vec3{X: size, Y: size, Z: size})
	bodyMax := probe.Add(vec.Vec3{X: size, Y: size, Z: size})
	cellMin := cell.ToVec3()
	cellMax := cellMin.Add(vec.Vec3{X: 1, Y: 1, Z: 1})

	overlaps := [6]struct {
		depth float64
		axis  int
	}{
		{bodyMax.X - cellMin.X, AxisX}, // вход слева
		{cellMax.X - bodyMin.X, AxisX}, // вход справа
		{bodyMax.Y - cellMin.Y, AxisY}, // вход снизу
		{cellMax.Y - bodyMin.Y, AxisY}, // вход сверху
		{bodyMax.Z - cellMin.Z, AxisZ}, // вход сзади
		{cellMax.Z - bodyMin.Z, AxisZ}, // вход спереди
	}

	best := overlaps[0]
	for _, o := range overlaps[1:] {
		if o.depth > best.depth {
			best = o
		}
	}
	return best.axis
}

// applyAxisResponse применяет осевой отклик на удар: быстрая ось
// отражается с затуханием и гасит остальные оси трением, медленная —
// просто останавливается.
func applyAxisResponse(body *MovingBody, axis int) {
	v := component(body.Vel, axis)
	if v > BounceSpeedThreshold || v < -BounceSpeedThreshold {
		restitution := body.Kind.Restitution()
		friction := body.Kind.Friction()
		body.Vel = scaleOthers(body.Vel, axis, friction)
		body.Vel = setComponent(body.Vel, axis, -v*restitution)
	} else {
		body.Vel = setComponent(body.Vel, axis, 0)
	}
}

// ApplyWorldBounds удерживает тело в границах мира: пол отражает с
// затуханием, стены по X и Z прижимают без отскока.
func ApplyWorldBounds(body *MovingBody) {
	if body.Pos.Y < body.Size {
		body.Pos.Y = body.Size
		body.Vel.Y *= -FloorRestitution
		body.Vel.X *= FloorLateralDamping
		body.Vel.Z *= FloorLateralDamping
	}

	limit := float64(world.Size)
	if body.Pos.X < body.Size {
		body.Pos.X = body.Size
	} else if body.Pos.X > limit-body.Size {
		body.Pos.X = limit - body.Size
	}
	if body.Pos.Z < body.Size {
		body.Pos.Z = body.Size
	} else if body.Pos.Z > limit-body.Size {
		body.Pos.Z = limit - body.Size
	}
}

func component(v vec.Vec3, axis int) float64 {
	switch axis {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

func setComponent(v vec.Vec3, axis int, value float64) vec.Vec3 {
	switch axis {
	case AxisX:
		v.X = value
	case AxisY:
		v.Y = value
	default:
		v.Z = value
	}
	return v
}

// scaleOthers умножает компоненты скорости по двум осям, кроме указанной
func scaleOthers(v vec.Vec3, axis int, factor float64) vec.Vec3 {
	switch axis {
	case AxisX:
		v.Y *= factor
		v.Z *= factor
	case AxisY:
		v.X *= factor
		v.Z *= factor
	default:
		v.X *= factor
		v.Y *= factor
	}
	return v
}
