package sim

import "time"

// TickStats — счётчики одного тика симуляции
type TickStats struct {
	Tick     uint64
	DT       float64
	Duration time.Duration

	Players    int
	Bodies     int
	SolidCells int

	ProjectilesFired int
	TerrainImpacts   int
	DebrisSpawned    int
	DebrisDropped    int // Отброшено из-за потолка числа тел
	CellsDestroyed   int // Ячейки тел игроков, снятые снарядами
	Settled          int
}

// TickObserver получает статистику каждого завершённого тика.
// Симуляция ничего не знает о способе экспорта: наблюдатель внедряется
// при сборке сервера.
type TickObserver interface {
	OnTick(stats TickStats)
}

// NopObserver — наблюдатель-заглушка для тестов и headless-запусков
type NopObserver struct{}

// OnTick ничего не делает
func (NopObserver) OnTick(TickStats) {}
