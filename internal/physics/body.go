package physics

import (
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
)

// Константы свободных вокселей
const (
	// MovingBodySize — полуразмер куба свободного вокселя
	MovingBodySize = 0.45

	// Gravity — ускорение свободного падения, ед/с²
	Gravity = 30.0

	// ProjectileSpeed — стартовая скорость снаряда
	ProjectileSpeed = 30.0

	// Порог отскока: выше — отскок с затуханием, ниже — остановка по оси
	BounceSpeedThreshold = 2.0

	// DestructionSpeed — скорость удара, с которой начинается разрушение рельефа
	DestructionSpeed = 15.0

	// Пороги укладки тела в решётку
	SettleSpeed = 3.0
	SettleDelta = 0.05

	// Снятие иммунитета метателя: по удалению либо по числу кадров
	ImmunityDistance = 20.0
	ImmunityFrames   = 10

	// Отскок от пола мира и боковое затухание при касании
	FloorRestitution    = 0.3
	FloorLateralDamping = 0.8

	// PairRestitution — упругость столкновения воксель-воксель
	PairRestitution = 0.6
)

// BodyKind определяет тип свободного вокселя. Закрытое перечисление:
// тип задаёт коэффициенты отклика и поведение при разрушении.
type BodyKind int

const (
	KindProjectile BodyKind = iota
	KindDebris
)

// String возвращает строковое представление типа
func (k BodyKind) String() string {
	switch k {
	case KindProjectile:
		return "projectile"
	case KindDebris:
		return "debris"
	default:
		return "unknown"
	}
}

// Restitution возвращает коэффициент упругости при ударе о рельеф
func (k BodyKind) Restitution() float64 {
	if k == KindProjectile {
		return 0.4
	}
	return 0.2
}

// Friction возвращает коэффициент трения по остальным осям при ударе
func (k BodyKind) Friction() float64 {
	if k == KindProjectile {
		return 0.8
	}
	return 0.9
}

// MovingBody — свободно летящий воксель: снаряд или осколок.
// Живёт от создания (выстрел, разрушение рельефа) до укладки в решётку
// либо взаимного уничтожения со снарядом/ячейкой тела игрока.
type MovingBody struct {
	ID   uint64
	Kind BodyKind

	Pos     vec.Vec3
	Vel     vec.Vec3
	LastPos vec.Vec3 // Позиция прошлого тика — для порога укладки
	Size    float64  // Полуразмер куба

	// OwnerID — id метателя, только для снарядов. Слабая ссылка:
	// владелец ищется по карте игроков и может уже отключиться.
	OwnerID string

	FramesAlive    int
	HasCollided    bool // Одноразовая защёлка: разрушение рельефа срабатывает один раз
	ImmunityLifted bool // Защёлка снятия иммунитета метателя
}

// NewProjectile создаёт снаряд, выпущенный игроком
func NewProjectile(id uint64, pos, vel vec.Vec3, ownerID string) *MovingBody {
	return &MovingBody{
		ID:      id,
		Kind:    KindProjectile,
		Pos:     pos,
		Vel:     vel,
		LastPos: pos,
		Size:    MovingBodySize,
		OwnerID: ownerID,
	}
}

// NewDebris создаёт осколок разрушенного рельефа
func NewDebris(id uint64, pos, vel vec.Vec3) *MovingBody {
	return &MovingBody{
		ID:      id,
		Kind:    KindDebris,
		Pos:     pos,
		Vel:     vel,
		LastPos: pos,
		Size:    MovingBodySize,
	}
}

// Speed возвращает модуль скорости
func (b *MovingBody) Speed() float64 {
	return b.Vel.Length()
}

// ImmunityActive сообщает, действует ли ещё иммунитет метателя.
// Иммунитет снимается защёлкой: однажды снятый не проверяется заново.
func (b *MovingBody) ImmunityActive(throwerCOM vec.Vec3) bool {
	if b.Kind != KindProjectile {
		return false
	}
	if b.ImmunityLifted {
		return false
	}
	if b.FramesAlive > ImmunityFrames || b.Pos.DistanceTo(throwerCOM) > ImmunityDistance {
		b.ImmunityLifted = true
		return false
	}
	return true
}
