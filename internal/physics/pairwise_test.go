package physics

import (
	"testing"

	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestResolvePair_SeparationAndImpulse(t *testing.T) {
	// Лобовое сближение: перекрытие 0.4 при minDist 0.9
	a := NewDebris(1, vec.Vec3{X: 50, Y: 50, Z: 50}, vec.Vec3{X: 5})
	b := NewDebris(2, vec.Vec3{X: 50.5, Y: 50, Z: 50}, vec.Vec3{X: -5})

	assert.True(t, ResolvePair(a, b), "пересекающиеся тела должны быть разрешены")

	// Каждое тело отодвинуто на 51% глубины проникновения
	assert.InDelta(t, 50-0.4*0.51, a.Pos.X, 1e-9, "a отодвинуто против нормали")
	assert.InDelta(t, 50.5+0.4*0.51, b.Pos.X, 1e-9, "b отодвинуто по нормали")

	// j = -(1+0.6)·(-10)/2 = 8
	assert.InDelta(t, -3.0, a.Vel.X, 1e-9, "a получает обратный импульс")
	assert.InDelta(t, 3.0, b.Vel.X, 1e-9, "b получает равный противоположный импульс")
	assert.InDelta(t, 0.0, a.Vel.X+b.Vel.X, 1e-9, "суммарный импульс сохраняется")
}

func TestResolvePair_Separating(t *testing.T) {
	// Тела пересекаются, но уже расходятся: расталкивание без импульса
	a := NewDebris(1, vec.Vec3{X: 50, Y: 50, Z: 50}, vec.Vec3{X: -5})
	b := NewDebris(2, vec.Vec3{X: 50.5, Y: 50, Z: 50}, vec.Vec3{X: 5})

	assert.True(t, ResolvePair(a, b))
	assert.InDelta(t, -5.0, a.Vel.X, 1e-9, "скорость расходящегося тела не меняется")
	assert.InDelta(t, 5.0, b.Vel.X, 1e-9, "скорость расходящегося тела не меняется")
	assert.Less(t, a.Pos.X, 50.0, "расталкивание применяется всегда")
	assert.Greater(t, b.Pos.X, 50.5, "расталкивание применяется всегда")
}

func TestResolvePair_NoContact(t *testing.T) {
	a := NewDebris(1, vec.Vec3{X: 50, Y: 50, Z: 50}, vec.Vec3{X: 5})
	b := NewDebris(2, vec.Vec3{X: 52, Y: 50, Z: 50}, vec.Vec3{X: -5})

	assert.False(t, ResolvePair(a, b), "тела на расстоянии не взаимодействуют")
	assert.Equal(t, vec.Vec3{X: 50, Y: 50, Z: 50}, a.Pos)
	assert.Equal(t, vec.Vec3{X: 5}, a.Vel)
}

func TestResolvePair_SameCenter(t *testing.T) {
	// Совпавшие центры: нормаль вырождена, развод вертикально
	a := NewDebris(1, vec.Vec3{X: 50, Y: 50, Z: 50}, vec.Vec3{})
	b := NewDebris(2, vec.Vec3{X: 50, Y: 50, Z: 50}, vec.Vec3{})

	assert.True(t, ResolvePair(a, b))
	assert.Less(t, a.Pos.Y, 50.0, "a уходит вниз")
	assert.Greater(t, b.Pos.Y, 50.0, "b уходит вверх")
	assert.InDelta(t, 0.9*0.51, b.Pos.Y-50, 1e-9, "развод на полную глубину проникновения")
}

func TestResolveAgainstPinned(t *testing.T) {
	// Осколок падает на закреплённую ячейку тела игрока
	body := NewDebris(1, vec.Vec3{X: 50, Y: 50.5, Z: 50}, vec.Vec3{Y: -10})
	cellPos := vec.Vec3{X: 50, Y: 49.8, Z: 50}

	assert.True(t, ResolveAgainstPinned(body, cellPos, PlayerCellSize))

	// Ячейка не сдвигается — всё разделение достаётся свободному телу
	assert.InDelta(t, 50.5+0.2*0.51*2, body.Pos.Y, 1e-9, "тело принимает обе доли разделения")
	assert.InDelta(t, 6.0, body.Vel.Y, 1e-9, "полный отражённый импульс: -(1+0.6)·(-10)")
}

func TestResolveAgainstPinned_Separating(t *testing.T) {
	body := NewDebris(1, vec.Vec3{X: 50, Y: 50.5, Z: 50}, vec.Vec3{Y: 3})
	cellPos := vec.Vec3{X: 50, Y: 49.8, Z: 50}

	assert.True(t, ResolveAgainstPinned(body, cellPos, PlayerCellSize))
	assert.InDelta(t, 3.0, body.Vel.Y, 1e-9, "расходящееся тело не получает импульс")

	far := NewDebris(2, vec.Vec3{X: 55, Y: 50, Z: 50}, vec.Vec3{})
	assert.False(t, ResolveAgainstPinned(far, cellPos, PlayerCellSize),
		"далёкое тело не взаимодействует")
}

func TestSweepSegmentSphere(t *testing.T) {
	p0 := vec.Vec3{}
	p1 := vec.Vec3{X: 10}
	center := vec.Vec3{X: 5, Y: 0.5}

	// Пролёт в 0.5 от центра сферы радиуса 1 — пересечение есть
	tHit, ok := SweepSegmentSphere(p0, p1, center, 1.0)
	assert.True(t, ok, "отрезок проходит сквозь сферу")
	assert.InDelta(t, 0.41340, tHit, 1e-4, "вход в сферу в первой точке пересечения")

	// Начало уже внутри сферы
	tHit, ok = SweepSegmentSphere(vec.Vec3{X: 5, Y: 0.6}, p1, center, 1.0)
	assert.True(t, ok)
	assert.Equal(t, 0.0, tHit, "старт внутри сферы — немедленный контакт")

	// Пролёт мимо
	_, ok = SweepSegmentSphere(vec.Vec3{Y: 3}, vec.Vec3{X: 10, Y: 3}, center, 1.0)
	assert.False(t, ok, "отрезок проходит мимо сферы")

	// Движение от сферы
	_, ok = SweepSegmentSphere(vec.Vec3{X: 7}, vec.Vec3{X: 17}, center, 1.0)
	assert.False(t, ok, "отрезок направлен от сферы")

	// Сфера дальше конца отрезка
	_, ok = SweepSegmentSphere(p0, p1, vec.Vec3{X: 20}, 1.0)
	assert.False(t, ok, "пересечение за пределами отрезка не считается")

	// Нулевой отрезок вне сферы
	_, ok = SweepSegmentSphere(vec.Vec3{X: 3}, vec.Vec3{X: 3}, center, 1.0)
	assert.False(t, ok, "неподвижная точка вне сферы")
}
