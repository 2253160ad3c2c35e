package sim

import (
	"time"

	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

// Snapshot — неизменяемый срез состояния мира на конец тика.
// Строится заново каждый тик и публикуется атомарно: читатели (рассылка,
// REST) работают со своим экземпляром и никогда не видят мир в середине
// обновления.
type Snapshot struct {
	Tick uint64    `json:"tick"`
	DT   float64   `json:"dt"`
	Time time.Time `json:"time"`

	Players []PlayerSnapshot `json:"players"`
	Bodies  []BodySnapshot   `json:"bodies"`

	// Изменения рельефа за тик. TerrainChanged=false означает, что
	// Deltas и DirtyColumns пусты и клиентам нечего применять.
	TerrainChanged bool              `json:"terrain_changed"`
	Deltas         []world.CellDelta `json:"deltas,omitempty"`
	DirtyColumns   []vec.Vec2        `json:"dirty_columns,omitempty"`

	SolidCells int `json:"solid_cells"`
}

// PlayerSnapshot — состояние тела игрока для передачи клиентам
type PlayerSnapshot struct {
	ID          string   `json:"id"`
	Pos         vec.Vec3 `json:"pos"` // Центр масс
	Yaw         float64  `json:"yaw"`
	Pitch       float64  `json:"pitch"`
	Grounded    bool     `json:"grounded"`
	VerticalVel float64  `json:"vertical_vel"`
	CellCount   int      `json:"cell_count"`
}

// BodySnapshot — состояние свободного вокселя для передачи клиентам
type BodySnapshot struct {
	ID    uint64   `json:"id"`
	Kind  string   `json:"kind"`
	Pos   vec.Vec3 `json:"pos"`
	Owner string   `json:"owner,omitempty"`
}
