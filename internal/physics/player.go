package physics

import (
	"math"

	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

// Константы тела игрока
const (
	// Габариты тела в ячейках
	PlayerWidth  = 16
	PlayerHeight = 32
	PlayerDepth  = 16

	// PlayerCellSize — полуразмер одной ячейки тела для столкновений
	PlayerCellSize = 0.45

	playerHalfWidth  = float64(PlayerWidth) / 2
	playerHalfHeight = float64(PlayerHeight) / 2

	// MoveSpeed — горизонтальная скорость ходьбы, ед/с
	MoveSpeed = 24.0

	// JumpSpeed — стартовая вертикальная скорость прыжка
	JumpSpeed = 18.0

	// StepHeight — максимальный перепад высоты колонок, на который можно шагнуть
	StepHeight = 6

	// MaxCOMShift — предел смещения центра масс за тик при потере ячеек
	MaxCOMShift = 2.0

	// Гистерезис отрыва от земли: выше этого зазора начинается падение
	groundedHysteresis = 1.0

	// Отступ центра от стен мира. Намеренно маленький относительно
	// габаритов тела — ячейки у стены могут выходить за границу.
	worldMargin = playerHalfWidth / 16
)

// MoveKeys — последнее известное состояние клавиш движения
type MoveKeys struct {
	W, A, S, D bool
}

// BodyCell — одна ячейка тела игрока. Пока прикреплена, собственной
// скорости не имеет: позиция в мире — центр масс плюс смещение.
type BodyCell struct {
	Offset vec.Vec3
}

// PlayerBody — жёсткий блок ячеек, движущийся как целое под вводом
// игрока и гравитацией. Число ячеек только убывает: выбитые снарядом
// ячейки не восстанавливаются.
type PlayerBody struct {
	ID string

	COM         vec.Vec3 // Сглаженный центр масс
	Cells       []BodyCell
	VerticalVel float64
	Grounded    bool

	Yaw   float64
	Pitch float64
	Keys  MoveKeys

	boundRadius float64 // Радиус описанной сферы на момент создания
}

// NewPlayerBody создаёт тело игрока из полного блока 16×32×16 ячеек
// с центром масс в точке spawn.
func NewPlayerBody(id string, spawn vec.Vec3) *PlayerBody {
	cells := make([]BodyCell, 0, PlayerWidth*PlayerHeight*PlayerDepth)
	maxOffset := 0.0

	for j := 0; j < PlayerHeight; j++ {
		for k := 0; k < PlayerDepth; k++ {
			for i := 0; i < PlayerWidth; i++ {
				offset := vec.Vec3{
					X: float64(i) - (PlayerWidth-1)/2.0,
					Y: float64(j) - (PlayerHeight-1)/2.0,
					Z: float64(k) - (PlayerDepth-1)/2.0,
				}
				cells = append(cells, BodyCell{Offset: offset})
				if l := offset.Length(); l > maxOffset {
					maxOffset = l
				}
			}
		}
	}

	return &PlayerBody{
		ID:          id,
		COM:         spawn,
		Cells:       cells,
		boundRadius: maxOffset + PlayerCellSize,
	}
}

// CellCount возвращает число оставшихся ячеек тела
func (p *PlayerBody) CellCount() int {
	return len(p.Cells)
}

// CellPos возвращает позицию ячейки в мире
func (p *PlayerBody) CellPos(i int) vec.Vec3 {
	return p.COM.Add(p.Cells[i].Offset)
}

// RemoveCell удаляет ячейку тела, сохраняя порядок остальных
func (p *PlayerBody) RemoveCell(i int) {
	if i < 0 || i >= len(p.Cells) {
		return
	}
	p.Cells = append(p.Cells[:i], p.Cells[i+1:]...)
}

// BoundingRadius возвращает радиус описанной сферы тела.
// Радиус зафиксирован на момент создания: при потере ячеек тело может
// только сжиматься, так что значение остаётся консервативно верным.
func (p *PlayerBody) BoundingRadius() float64 {
	return p.boundRadius
}

// SetOrientation обновляет ориентацию камеры
func (p *PlayerBody) SetOrientation(yaw, pitch float64) {
	p.Yaw = yaw
	p.Pitch = pitch
}

// SetKeys обновляет состояние клавиш движения
func (p *PlayerBody) SetKeys(keys MoveKeys) {
	p.Keys = keys
}

// Jump начинает прыжок. Действует только с земли.
func (p *PlayerBody) Jump() {
	if !p.Grounded {
		return
	}
	p.VerticalVel = JumpSpeed
	p.Grounded = false
}

// Update выполняет один тик физики игрока: сглаживание центра масс,
// горизонтальное движение по вводу, вертикаль по состоянию
// Airborne/Grounded и прижатие к границам мира.
func (p *PlayerBody) Update(grid *world.VoxelGrid, dt float64) {
	p.recenter()
	p.applyMovement(grid, dt)
	p.applyVertical(grid, dt)
	p.clampToWorld()
}

// recenter тянет центр масс к среднему оставшихся ячеек, не больше чем
// на MaxCOMShift за тик. Ячейки при этом остаются на местах в мире:
// смещения пересчитываются, остаток догоняется в следующие тики.
func (p *PlayerBody) recenter() {
	if len(p.Cells) == 0 {
		return
	}

	var sum vec.Vec3
	for _, c := range p.Cells {
		sum = sum.Add(c.Offset)
	}
	mean := sum.Mul(1 / float64(len(p.Cells)))
	if mean == (vec.Vec3{}) {
		return
	}

	shift := mean
	if shift.Length() > MaxCOMShift {
		shift = shift.Normalized().Mul(MaxCOMShift)
	}

	p.COM = p.COM.Add(shift)
	for i := range p.Cells {
		p.Cells[i].Offset = p.Cells[i].Offset.Sub(shift)
	}
}

// applyMovement выполняет горизонтальный шаг по клавишам и ориентации.
// Подъём круче StepHeight отвергает весь шаг: частичного скольжения нет.
func (p *PlayerBody) applyMovement(grid *world.VoxelGrid, dt float64) {
	forward := 0.0
	if p.Keys.W {
		forward++
	}
	if p.Keys.S {
		forward--
	}
	strafe := 0.0
	if p.Keys.D {
		strafe++
	}
	if p.Keys.A {
		strafe--
	}
	if forward == 0 && strafe == 0 {
		return
	}

	// Базис камеры: прямая проекция взгляда на плоскость XZ плюс строго
	// горизонтальный вектор вправо.
	cosPitch := math.Cos(p.Pitch)
	dir := vec.Vec2Float{
		X: forward*(-math.Sin(p.Yaw))*cosPitch + strafe*math.Cos(p.Yaw),
		Y: forward*math.Cos(p.Yaw)*cosPitch + strafe*math.Sin(p.Yaw),
	}.Normalized()
	if dir == (vec.Vec2Float{}) {
		return
	}

	step := dir.Mul(MoveSpeed * dt)

	cur := p.COM.ToVec3i()
	dest := p.COM.Add(vec.Vec3{X: step.X, Z: step.Y}).ToVec3i()
	climb := grid.ColumnHeight(dest.X, dest.Z) - grid.ColumnHeight(cur.X, cur.Z)
	if climb > StepHeight {
		return
	}

	p.COM = p.COM.Add(vec.Vec3{X: step.X, Z: step.Y})
}

// applyVertical ведёт машину состояний Airborne/Grounded.
// Уровень земли берётся по колонке текущего, не спроецированного,
// целочисленного XZ — свип по земле не выполняется.
func (p *PlayerBody) applyVertical(grid *world.VoxelGrid, dt float64) {
	col := p.COM.ToVec3i()
	groundLevel := float64(world.BaseHeight + grid.ColumnHeight(col.X, col.Z))
	standY := groundLevel + playerHalfHeight

	if p.Grounded {
		if p.COM.Y > standY+groundedHysteresis {
			// Опора ушла из-под ног — снова падаем
			p.Grounded = false
			return
		}
		// Непрерывное прижатие к опоре сглаживает ходьбу по неровностям
		p.COM.Y = standY
		p.VerticalVel = 0
		return
	}

	p.VerticalVel -= Gravity * dt
	p.COM.Y += p.VerticalVel * dt

	if p.COM.Y <= standY {
		p.COM.Y = standY
		p.VerticalVel = 0
		p.Grounded = true
	}
}

// clampToWorld прижимает центр масс к допустимой области по X и Z
func (p *PlayerBody) clampToWorld() {
	limit := float64(world.Size) - worldMargin
	if p.COM.X < worldMargin {
		p.COM.X = worldMargin
	} else if p.COM.X > limit {
		p.COM.X = limit
	}
	if p.COM.Z < worldMargin {
		p.COM.Z = worldMargin
	} else if p.COM.Z > limit {
		p.COM.Z = limit
	}
}
