package sim

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver экспортирует статистику тиков в Prometheus.
// Регистрирует метрики в глобальном регистре при создании, поэтому
// создаётся один раз на процесс.
type PrometheusObserver struct {
	tickDuration prometheus.Histogram
	players      prometheus.Gauge
	bodies       prometheus.Gauge
	solidCells   prometheus.Gauge

	projectilesFired prometheus.Counter
	terrainImpacts   prometheus.Counter
	debrisSpawned    prometheus.Counter
	debrisDropped    prometheus.Counter
	cellsDestroyed   prometheus.Counter
	settled          prometheus.Counter
}

// NewPrometheusObserver создаёт наблюдатель и регистрирует его метрики
func NewPrometheusObserver() *PrometheusObserver {
	o := &PrometheusObserver{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sim",
			Name:      "tick_duration_seconds",
			Help:      "Длительность одного тика симуляции.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sim",
			Name:      "players",
			Help:      "Число подключённых тел игроков.",
		}),
		bodies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sim",
			Name:      "moving_bodies",
			Help:      "Число свободных вокселей в полёте.",
		}),
		solidCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sim",
			Name:      "solid_cells",
			Help:      "Число занятых ячеек рельефа.",
		}),
		projectilesFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "projectiles_fired_total",
			Help:      "Выпущено снарядов.",
		}),
		terrainImpacts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "terrain_impacts_total",
			Help:      "Ударов о рельеф с разрушением.",
		}),
		debrisSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "debris_spawned_total",
			Help:      "Осколков, выбитых из рельефа.",
		}),
		debrisDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "debris_dropped_total",
			Help:      "Осколков, отброшенных из-за потолка числа тел.",
		}),
		cellsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "player_cells_destroyed_total",
			Help:      "Ячеек тел игроков, снятых снарядами.",
		}),
		settled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "bodies_settled_total",
			Help:      "Свободных вокселей, уложенных обратно в решётку.",
		}),
	}

	prometheus.MustRegister(
		o.tickDuration, o.players, o.bodies, o.solidCells,
		o.projectilesFired, o.terrainImpacts, o.debrisSpawned,
		o.debrisDropped, o.cellsDestroyed, o.settled,
	)
	return o
}

// OnTick переносит статистику тика в метрики
func (o *PrometheusObserver) OnTick(stats TickStats) {
	o.tickDuration.Observe(stats.Duration.Seconds())
	o.players.Set(float64(stats.Players))
	o.bodies.Set(float64(stats.Bodies))
	o.solidCells.Set(float64(stats.SolidCells))

	if stats.ProjectilesFired > 0 {
		o.projectilesFired.Add(float64(stats.ProjectilesFired))
	}
	if stats.TerrainImpacts > 0 {
		o.terrainImpacts.Add(float64(stats.TerrainImpacts))
	}
	if stats.DebrisSpawned > 0 {
		o.debrisSpawned.Add(float64(stats.DebrisSpawned))
	}
	if stats.DebrisDropped > 0 {
		o.debrisDropped.Add(float64(stats.DebrisDropped))
	}
	if stats.CellsDestroyed > 0 {
		o.cellsDestroyed.Add(float64(stats.CellsDestroyed))
	}
	if stats.Settled > 0 {
		o.settled.Add(float64(stats.Settled))
	}
}
