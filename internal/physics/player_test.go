package physics

import (
	"math"
	"testing"

	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
	"github.com/stretchr/testify/assert"
)

const testDT = 0.02

// buildColumn заполняет колонку рельефа h ячейками от основания
func buildColumn(g *world.VoxelGrid, x, z, h int) {
	for y := 0; y < h; y++ {
		g.Set(x, y, z, true)
	}
}

func TestNewPlayerBody(t *testing.T) {
	spawn := vec.Vec3{X: 64, Y: 90, Z: 64}
	p := NewPlayerBody("p1", spawn)

	assert.Equal(t, PlayerWidth*PlayerHeight*PlayerDepth, p.CellCount(),
		"полное тело из всех ячеек блока")

	// Смещения центрированы: среднее равно нулю
	var sum vec.Vec3
	for _, c := range p.Cells {
		sum = sum.Add(c.Offset)
	}
	assert.InDelta(t, 0, sum.X, 1e-6)
	assert.InDelta(t, 0, sum.Y, 1e-6)
	assert.InDelta(t, 0, sum.Z, 1e-6)

	wantRadius := math.Sqrt(7.5*7.5+15.5*15.5+7.5*7.5) + PlayerCellSize
	assert.InDelta(t, wantRadius, p.BoundingRadius(), 1e-9,
		"радиус описанной сферы — дальний угол плюс полуразмер ячейки")

	assert.Equal(t, spawn.Add(vec.Vec3{X: -7.5, Y: -15.5, Z: -7.5}), p.CellPos(0),
		"позиция ячейки — центр масс плюс смещение")
}

func TestPlayerBody_RemoveCell(t *testing.T) {
	p := NewPlayerBody("p1", vec.Vec3{X: 64, Y: 90, Z: 64})
	second := p.Cells[1].Offset

	p.RemoveCell(0)
	assert.Equal(t, PlayerWidth*PlayerHeight*PlayerDepth-1, p.CellCount())
	assert.Equal(t, second, p.Cells[0].Offset, "порядок оставшихся ячеек сохраняется")

	p.RemoveCell(-1)
	p.RemoveCell(p.CellCount())
	assert.Equal(t, PlayerWidth*PlayerHeight*PlayerDepth-1, p.CellCount(),
		"удаление вне диапазона — no-op")
}

func TestPlayerBody_Recenter_Cap(t *testing.T) {
	// Одна ячейка далеко от центра масс: сдвиг ограничен MaxCOMShift за тик
	p := &PlayerBody{
		ID:    "p1",
		COM:   vec.Vec3{X: 50, Y: 50, Z: 50},
		Cells: []BodyCell{{Offset: vec.Vec3{X: 4}}},
	}
	worldPos := p.CellPos(0)

	p.recenter()
	assert.InDelta(t, 52.0, p.COM.X, 1e-9, "сдвиг за тик ограничен MaxCOMShift")
	assert.Equal(t, worldPos, p.CellPos(0), "ячейки остаются на местах в мире")

	// Остаток догоняется следующим тиком
	p.recenter()
	assert.InDelta(t, 54.0, p.COM.X, 1e-9)
	assert.InDelta(t, 0.0, p.Cells[0].Offset.X, 1e-9, "центр масс дошёл до ячейки")
	assert.Equal(t, worldPos, p.CellPos(0))

	// Центр на месте — дальше не двигается
	p.recenter()
	assert.InDelta(t, 54.0, p.COM.X, 1e-9)
}

func TestPlayerBody_Recenter_AfterMassLoss(t *testing.T) {
	// Снос половины тела: центр масс тянется к уцелевшей половине
	p := NewPlayerBody("p1", vec.Vec3{X: 50, Y: 90, Z: 50})
	for i := p.CellCount() - 1; i >= 0; i-- {
		if p.Cells[i].Offset.X < 0 {
			p.RemoveCell(i)
		}
	}

	anchor := p.CellPos(0)
	p.recenter()

	// Среднее X уцелевших смещений 4.0 — сдвиг упирается в предел
	assert.InDelta(t, 52.0, p.COM.X, 1e-9)
	assert.InDelta(t, 90.0, p.COM.Y, 1e-9, "по Y тело симметрично — сдвига нет")
	assert.Equal(t, anchor, p.CellPos(0), "мировые позиции ячеек не меняются")
}

func TestPlayerBody_Movement_StepReject(t *testing.T) {
	g := world.NewVoxelGrid()
	buildColumn(g, 51, 50, StepHeight+4) // подъём выше предела шага
	g.RebuildHeights()

	p := NewPlayerBody("p1", vec.Vec3{X: 50.4, Y: 90, Z: 50.5})
	p.SetKeys(MoveKeys{D: true}) // стрейф вправо при yaw=0 — движение в +X

	p.applyMovement(g, 0.05)
	assert.InDelta(t, 50.4, p.COM.X, 1e-9, "подъём круче StepHeight отвергает весь шаг")

	// Срезаем колонку до проходимой высоты
	for y := StepHeight; y < StepHeight+4; y++ {
		g.Set(51, y, 50, false)
	}
	g.RebuildHeights()

	p.applyMovement(g, 0.05)
	assert.InDelta(t, 50.4+MoveSpeed*0.05, p.COM.X, 1e-9, "подъём в пределах шага разрешён")
}

func TestPlayerBody_Movement_Descend(t *testing.T) {
	// Спуск любой глубины не отвергается
	g := world.NewVoxelGrid()
	buildColumn(g, 50, 50, 20)
	g.RebuildHeights()

	p := NewPlayerBody("p1", vec.Vec3{X: 50.4, Y: 90, Z: 50.5})
	p.SetKeys(MoveKeys{D: true})

	p.applyMovement(g, 0.05)
	assert.Greater(t, p.COM.X, 50.4, "спуск с обрыва разрешён")
}

func TestPlayerBody_Movement_Idle(t *testing.T) {
	g := world.NewVoxelGrid()
	p := NewPlayerBody("p1", vec.Vec3{X: 50, Y: 90, Z: 50})

	p.applyMovement(g, testDT)
	assert.Equal(t, vec.Vec3{X: 50, Y: 90, Z: 50}, p.COM, "без клавиш движения нет")

	// Противоположные клавиши взаимно гасятся
	p.SetKeys(MoveKeys{W: true, S: true, A: true, D: true})
	p.applyMovement(g, testDT)
	assert.Equal(t, vec.Vec3{X: 50, Y: 90, Z: 50}, p.COM)
}

func TestPlayerBody_Movement_YawBasis(t *testing.T) {
	g := world.NewVoxelGrid()
	p := NewPlayerBody("p1", vec.Vec3{X: 64, Y: 90, Z: 64})
	p.SetKeys(MoveKeys{W: true})

	// При yaw=0 взгляд вдоль +Z
	p.applyMovement(g, 0.05)
	assert.InDelta(t, 64.0, p.COM.X, 1e-9)
	assert.InDelta(t, 64+MoveSpeed*0.05, p.COM.Z, 1e-9, "вперёд при yaw=0 — это +Z")

	// Поворот на -90°: вперёд становится +X
	p.SetOrientation(-math.Pi/2, 0)
	p.applyMovement(g, 0.05)
	assert.InDelta(t, 64+MoveSpeed*0.05, p.COM.X, 1e-9, "вперёд после поворота — это +X")

	// Наклон камеры не влияет на скорость ходьбы: XZ-вектор нормируется
	p.SetOrientation(0, 0.9)
	before := p.COM
	p.applyMovement(g, 0.05)
	assert.InDelta(t, MoveSpeed*0.05, p.COM.DistanceTo(before), 1e-9,
		"скорость ходьбы не зависит от наклона взгляда")
}

func TestPlayerBody_Vertical_LandAndSnap(t *testing.T) {
	g := world.NewVoxelGrid()
	buildColumn(g, 60, 60, 8)
	g.RebuildHeights()
	standY := float64(world.BaseHeight+8) + playerHalfHeight

	p := NewPlayerBody("p1", vec.Vec3{X: 60.5, Y: standY + 14, Z: 60.5})
	assert.False(t, p.Grounded, "спавн в воздухе")

	for i := 0; i < 500 && !p.Grounded; i++ {
		p.Update(g, testDT)
	}

	assert.True(t, p.Grounded, "падение должно закончиться приземлением")
	assert.Equal(t, standY, p.COM.Y, "приземление прижимает точно к уровню опоры")
	assert.Equal(t, 0.0, p.VerticalVel)

	// Рост колонки под ногами — мгновенное прижатие вверх
	g.Set(60, 8, 60, true)
	g.RebuildHeights()
	p.Update(g, testDT)
	assert.Equal(t, standY+1, p.COM.Y, "подъём опоры тянет тело вверх")
	assert.True(t, p.Grounded)
}

func TestPlayerBody_Vertical_WalkOffCliff(t *testing.T) {
	g := world.NewVoxelGrid()
	buildColumn(g, 60, 60, 8)
	g.RebuildHeights()
	standY := float64(world.BaseHeight+8) + playerHalfHeight

	p := NewPlayerBody("p1", vec.Vec3{X: 60.5, Y: standY, Z: 60.5})
	p.Grounded = true

	// Опора исчезает: зазор больше гистерезиса — начинается падение
	for y := 0; y < 8; y++ {
		g.Set(60, y, 60, false)
	}
	g.RebuildHeights()

	p.Update(g, testDT)
	assert.False(t, p.Grounded, "уход опоры переводит в полёт")

	p.Update(g, testDT)
	assert.Less(t, p.VerticalVel, 0.0, "в полёте действует гравитация")
	assert.Less(t, p.COM.Y, standY, "тело начало падать")
}

func TestPlayerBody_Jump(t *testing.T) {
	g := world.NewVoxelGrid()
	standY := float64(world.BaseHeight) + playerHalfHeight

	p := NewPlayerBody("p1", vec.Vec3{X: 60.5, Y: standY, Z: 60.5})
	p.Grounded = true

	p.Jump()
	assert.False(t, p.Grounded, "прыжок отрывает от земли")
	assert.Equal(t, JumpSpeed, p.VerticalVel)

	p.Update(g, testDT)
	assert.Greater(t, p.COM.Y, standY, "тело пошло вверх")

	// Прыжок в воздухе игнорируется
	velBefore := p.VerticalVel
	p.Jump()
	assert.Equal(t, velBefore, p.VerticalVel, "двойного прыжка нет")

	for i := 0; i < 500 && !p.Grounded; i++ {
		p.Update(g, testDT)
	}
	assert.True(t, p.Grounded, "прыжок заканчивается приземлением")
	assert.Equal(t, standY, p.COM.Y)
}

func TestPlayerBody_ClampToWorld(t *testing.T) {
	p := NewPlayerBody("p1", vec.Vec3{X: -5, Y: 50, Z: 300})

	p.clampToWorld()

	assert.InDelta(t, 0.5, p.COM.X, 1e-9, "центр прижат к минимальному отступу")
	assert.InDelta(t, float64(world.Size)-0.5, p.COM.Z, 1e-9, "центр прижат к дальней стене")
	assert.Equal(t, 50.0, p.COM.Y, "по Y прижатия нет")
}
