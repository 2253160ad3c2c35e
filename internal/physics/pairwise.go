package physics

import (
	"math"

	"github.com/Jplayz2468/Voxel-Game/internal/vec"
)

// Доля глубины проникновения, на которую расталкивается каждое тело.
// Лишний 1% страхует от численного залипания пары на границе контакта.
const separationShare = 0.51

// ResolvePair разрешает столкновение двух свободных вокселей с равными
// эффективными массами: тела расталкиваются вдоль нормали разделения,
// затем, если они сближаются, обмениваются равным и противоположным
// импульсом с упругостью PairRestitution.
// Возвращает false, если тела не пересекаются.
func ResolvePair(a, b *MovingBody) bool {
	delta := b.Pos.Sub(a.Pos)
	dist := delta.Length()
	minDist := a.Size + b.Size
	if dist >= minDist {
		return false
	}

	// Совпавшие центры не дают нормали — разводим вертикально
	normal := delta.Normalized()
	if normal == (vec.Vec3{}) {
		normal = vec.Vec3{Y: 1}
	}

	push := normal.Mul((minDist - dist) * separationShare)
	a.Pos = a.Pos.Sub(push)
	b.Pos = b.Pos.Add(push)

	relVel := b.Vel.Sub(a.Vel)
	vn := relVel.Dot(normal)
	if vn > 0 {
		// Уже расходятся — импульс не нужен
		return true
	}

	j := -(1 + PairRestitution) * vn / 2
	impulse := normal.Mul(j)
	a.Vel = a.Vel.Sub(impulse)
	b.Vel = b.Vel.Add(impulse)
	return true
}

// ResolveAgainstPinned разрешает столкновение свободного вокселя с
// закреплённой ячейкой тела игрока. Ячейка не несёт собственной скорости
// и не сдвигается: свободное тело принимает на себя всё разделение и
// полный отражённый импульс.
func ResolveAgainstPinned(body *MovingBody, cellPos vec.Vec3, cellSize float64) bool {
	delta := body.Pos.Sub(cellPos)
	dist := delta.Length()
	minDist := body.Size + cellSize
	if dist >= minDist {
		return false
	}

	normal := delta.Normalized()
	if normal == (vec.Vec3{}) {
		normal = vec.Vec3{Y: 1}
	}

	// Обе доли разделения достаются свободному телу
	body.Pos = body.Pos.Add(normal.Mul((minDist - dist) * separationShare * 2))

	vn := body.Vel.Dot(normal)
	if vn > 0 {
		return true
	}

	body.Vel = body.Vel.Add(normal.Mul(-(1 + PairRestitution) * vn))
	return true
}

// SweepSegmentSphere находит наименьший параметр t ∈ [0,1], при котором
// точка отрезка p0..p1 входит в сферу с центром center и радиусом radius.
// Сначала дешёвые отсечения по ближайшей точке, затем точное решение
// квадратного уравнения пересечения.
func SweepSegmentSphere(p0, p1, center vec.Vec3, radius float64) (float64, bool) {
	d := p1.Sub(p0)
	m := p0.Sub(center)

	c := m.LengthSq() - radius*radius
	if c <= 0 {
		// Начало отрезка уже внутри сферы
		return 0, true
	}

	a := d.LengthSq()
	if a == 0 {
		// Нулевой отрезок вне сферы
		return 0, false
	}

	b := m.Dot(d)
	if b > 0 {
		// Отрезок направлен от сферы
		return 0, false
	}

	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}

	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}
