package sim

import (
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
)

// Типы событий мира, публикуемых в шину
const (
	EventPlayerJoined     = "world.player_joined"
	EventPlayerLeft       = "world.player_left"
	EventProjectileFired  = "world.projectile_fired"
	EventTerrainDestroyed = "world.terrain_destroyed"
	EventBodySettled      = "world.body_settled"
)

// eventSource — имя источника в конвертах событий симуляции
const eventSource = "voxel-sim"

// Приоритеты событий: всё ниже порога блокировки шины, чтобы публикация
// из горутины тика никогда не ждала места в буфере.
const (
	prioPlayer  = 4
	prioTerrain = 3
	prioBody    = 1
)

// PlayerEventPayload — полезная нагрузка player_joined / player_left
type PlayerEventPayload struct {
	PlayerID  string   `json:"player_id"`
	Pos       vec.Vec3 `json:"pos"`
	CellCount int      `json:"cell_count"`
}

// ProjectileFiredPayload — полезная нагрузка projectile_fired
type ProjectileFiredPayload struct {
	BodyID    uint64   `json:"body_id"`
	ThrowerID string   `json:"thrower_id"`
	Origin    vec.Vec3 `json:"origin"`
	Velocity  vec.Vec3 `json:"velocity"`
}

// TerrainDestroyedPayload — полезная нагрузка terrain_destroyed
type TerrainDestroyedPayload struct {
	Cell        vec.Vec3i `json:"cell"`
	ImpactSpeed float64   `json:"impact_speed"`
	DebrisCount int       `json:"debris_count"`
	ByBody      uint64    `json:"by_body"`
}

// BodySettledPayload — полезная нагрузка body_settled
type BodySettledPayload struct {
	BodyID uint64    `json:"body_id"`
	Kind   string    `json:"kind"`
	Cell   vec.Vec3i `json:"cell"`
}
