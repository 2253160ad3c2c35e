package sim

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jplayz2468/Voxel-Game/internal/config"
	"github.com/Jplayz2468/Voxel-Game/internal/eventbus"
	"github.com/Jplayz2468/Voxel-Game/internal/physics"
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

const testDT = 0.02

const fullPlayerCells = physics.PlayerWidth * physics.PlayerHeight * physics.PlayerDepth

// captureObserver копит статистику тиков для проверок сценариев
type captureObserver struct {
	ticks []TickStats
}

func (c *captureObserver) OnTick(st TickStats) { c.ticks = append(c.ticks, st) }

func (c *captureObserver) last() TickStats {
	if len(c.ticks) == 0 {
		return TickStats{}
	}
	return c.ticks[len(c.ticks)-1]
}

func newTestWorld(t *testing.T, gen world.TerrainGenerator) (*SimulationWorld, *captureObserver) {
	t.Helper()
	grid := world.NewVoxelGrid()
	if gen != nil {
		gen.Generate(grid)
	}
	obs := &captureObserver{}
	s := NewSimulationWorld(grid, &config.PhysicsConfig{}, nil, obs)
	s.rng = rand.New(rand.NewSource(42)) // детерминизм сценариев
	return s, obs
}

// joinPlayer подключает игрока в обход сетевого слоя: намерение кладётся
// в очередь напрямую, ответ забирается после одного тика.
func joinPlayer(t *testing.T, s *SimulationWorld, id string) JoinReply {
	t.Helper()
	reply := make(chan JoinReply, 1)
	s.intents <- joinIntent{id: id, reply: reply}
	s.Tick(testDT)
	select {
	case r := <-reply:
		return r
	default:
		t.Fatalf("симуляция не ответила на подключение %s", id)
		return JoinReply{}
	}
}

func TestAddPlayer_PublicAPI(t *testing.T) {
	s, _ := newTestWorld(t, world.NewFlatGenerator(7))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan JoinReply, 1)
	errCh := make(chan error, 1)
	go func() {
		r, err := s.AddPlayer(ctx, "alice")
		if err != nil {
			errCh <- err
			return
		}
		done <- r
	}()

	deadline := time.After(5 * time.Second)
	for {
		s.Tick(testDT)
		select {
		case r := <-done:
			assert.GreaterOrEqual(t, r.Spawn.X, spawnMargin)
			assert.LessOrEqual(t, r.Spawn.X, float64(world.Size)-spawnMargin)
			assert.Equal(t, float64(world.BaseHeight)+spawnAltitude, r.Spawn.Y,
				"спавн поднят над основанием рельефа")
			assert.Len(t, r.GridPacked, world.Size*world.Size*world.Size/8,
				"ответ несёт полный битовый слепок решётки")
			return
		case err := <-errCh:
			t.Fatalf("AddPlayer: %v", err)
		case <-deadline:
			t.Fatal("AddPlayer не дождался ответа симуляции")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestJoin_SnapshotContainsPlayer(t *testing.T) {
	s, obs := newTestWorld(t, world.NewFlatGenerator(7))
	r := joinPlayer(t, s, "alice")

	snap := s.Snapshot()
	require.Len(t, snap.Players, 1)
	p := snap.Players[0]
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, fullPlayerCells, p.CellCount)
	assert.False(t, p.Grounded, "спавн в воздухе")
	assert.Less(t, p.Pos.Y, r.Spawn.Y,
		"намерение применяется до интеграции: тело уже начало падать в тот же тик")
	assert.Equal(t, 1, obs.last().Players)
}

func TestLeave_RemovesBody(t *testing.T) {
	s, _ := newTestWorld(t, world.NewFlatGenerator(7))
	joinPlayer(t, s, "alice")

	s.RemovePlayer("alice")
	s.RemovePlayer("ghost") // неизвестный id не ломает тик
	s.Tick(testDT)

	assert.Empty(t, s.players)
	assert.Empty(t, s.Snapshot().Players)
}

func TestShoot_IntentAppliedBeforeIntegration(t *testing.T) {
	s, obs := newTestWorld(t, nil)
	origin := vec.Vec3{X: 64, Y: 64, Z: 64}

	s.SpawnProjectile(origin, vec.Vec3{X: 1}, "alice")
	s.Tick(testDT)

	require.Len(t, s.bodies, 1)
	b := s.bodies[0]
	assert.Equal(t, physics.KindProjectile, b.Kind)
	assert.Equal(t, uint64(firstBodyID+1), b.ID)
	assert.Equal(t, "alice", b.OwnerID)
	assert.Equal(t, 1, b.FramesAlive, "выстрел прожил весь тик, в котором был применён")
	assert.InDelta(t, origin.X+physics.ProjectileSpeed*testDT, b.Pos.X, 1e-9,
		"тело сдвинулось в том же тике")

	assert.Equal(t, 1, obs.last().ProjectilesFired)
	snap := s.Snapshot()
	require.Len(t, snap.Bodies, 1)
	assert.Equal(t, "projectile", snap.Bodies[0].Kind)
	assert.Equal(t, "alice", snap.Bodies[0].Owner)
}

func TestShoot_ZeroDirectionDropped(t *testing.T) {
	s, obs := newTestWorld(t, nil)

	s.SpawnProjectile(vec.Vec3{X: 64, Y: 64, Z: 64}, vec.Vec3{}, "alice")
	s.Tick(testDT)

	assert.Empty(t, s.bodies, "нулевое направление не рождает тело")
	assert.Zero(t, obs.last().ProjectilesFired)
}

func TestShoot_BodyCapRespected(t *testing.T) {
	s, obs := newTestWorld(t, nil)
	s.maxBodies = 2

	for i := 0; i < 5; i++ {
		s.SpawnProjectile(vec.Vec3{X: 64, Y: 64, Z: 64}, vec.Vec3{Y: 1}, "alice")
	}
	s.Tick(testDT)

	assert.Len(t, s.bodies, 2, "потолок тел ограничивает выстрелы")
	assert.Equal(t, 2, obs.last().ProjectilesFired)
}

func TestEffectiveDT_Clamp(t *testing.T) {
	s, _ := newTestWorld(t, nil)
	assert.InDelta(t, dtClampFactor*s.nominalDT, s.effectiveDT(1.0), 1e-12,
		"затянувшийся тик ограничивается сверху")
	assert.InDelta(t, testDT, s.effectiveDT(testDT), 1e-12, "нормальный dt не меняется")

	off := false
	s2 := NewSimulationWorld(world.NewVoxelGrid(), &config.PhysicsConfig{ClampDT: &off}, nil, nil)
	assert.InDelta(t, 1.0, s2.effectiveDT(1.0), 1e-12,
		"clamp_dt: false сохраняет измеренный dt как есть")
}

func TestSnapshotImmutable(t *testing.T) {
	s, _ := newTestWorld(t, world.NewFlatGenerator(7))
	joinPlayer(t, s, "alice")

	before := s.Snapshot()
	wantTick := before.Tick
	wantY := before.Players[0].Pos.Y

	for i := 0; i < 5; i++ {
		s.Tick(testDT)
	}

	after := s.Snapshot()
	assert.NotSame(t, before, after, "каждый тик публикует новый снапшот")
	assert.Equal(t, wantTick, before.Tick, "старый снапшот не мутирует")
	assert.Equal(t, wantY, before.Players[0].Pos.Y)
	assert.Less(t, after.Players[0].Pos.Y, wantY, "новый снапшот видит продолжение падения")
}

func TestSnapshotFeed_LatestWins(t *testing.T) {
	s, _ := newTestWorld(t, nil)
	feed := s.SnapshotFeed()

	for i := 0; i < 4; i++ {
		s.Tick(testDT)
	}

	select {
	case snap := <-feed:
		assert.Equal(t, uint64(4), snap.Tick, "медленный потребитель видит только свежайший тик")
	default:
		t.Fatal("канал снапшотов пуст")
	}
	select {
	case snap := <-feed:
		t.Fatalf("лишний снапшот тика %d", snap.Tick)
	default:
	}
}

//================ Снаряды против тел игроков =================//

func TestProjectileImmunity_OwnBodyIgnored(t *testing.T) {
	s, _ := newTestWorld(t, nil)
	p := physics.NewPlayerBody("alice", vec.Vec3{X: 64, Y: 100, Z: 64})
	s.players["alice"] = p

	b := physics.NewProjectile(1001, p.COM.Add(vec.Vec3{X: -12}), vec.Vec3{}, "alice")
	b.Pos = p.COM.Add(vec.Vec3{X: -4}) // путь за тик проходит сквозь край тела
	s.bodies = []*physics.MovingBody{b}

	stats := TickStats{}
	s.resolvePlayerCollisions(&stats)

	assert.Len(t, s.bodies, 1, "иммунитет метателя: снаряд пролетает сквозь своё тело")
	assert.Equal(t, fullPlayerCells, p.CellCount())
	assert.Zero(t, stats.CellsDestroyed)
}

func TestProjectileImmunity_MissingOwnerGivesNoImmunity(t *testing.T) {
	s, _ := newTestWorld(t, nil)
	p := physics.NewPlayerBody("bob", vec.Vec3{X: 64, Y: 100, Z: 64})
	s.players["bob"] = p

	// Метатель "ghost" уже покинул мир — иммунитет не действует ни на кого
	b := physics.NewProjectile(1001, p.COM.Add(vec.Vec3{X: -12}), vec.Vec3{}, "ghost")
	b.Pos = p.COM.Add(vec.Vec3{X: -4})
	s.bodies = []*physics.MovingBody{b}

	stats := TickStats{}
	s.resolvePlayerCollisions(&stats)

	assert.Empty(t, s.bodies, "без метателя в мире снаряд бьёт без льгот")
	assert.Equal(t, fullPlayerCells-1, p.CellCount())
	assert.Equal(t, 1, stats.CellsDestroyed)
}

func TestProjectileMutualDestruction_EarliestCellWins(t *testing.T) {
	s, _ := newTestWorld(t, nil)
	p := physics.NewPlayerBody("bob", vec.Vec3{X: 64, Y: 100, Z: 64})
	s.players["bob"] = p

	before := make(map[vec.Vec3]bool, p.CellCount())
	for i := 0; i < p.CellCount(); i++ {
		before[p.CellPos(i).Sub(p.COM)] = true
	}

	// Чужой снаряд входит в тело со стороны -X вдоль оси центра масс
	b := physics.NewProjectile(1001, p.COM.Add(vec.Vec3{X: -12}), vec.Vec3{}, "alice")
	b.Pos = p.COM.Add(vec.Vec3{X: -4})
	s.bodies = []*physics.MovingBody{b}

	stats := TickStats{}
	s.resolvePlayerCollisions(&stats)

	require.Empty(t, s.bodies, "попадание взаимно: снаряд гибнет вместе с ячейкой")
	require.Equal(t, 1, stats.CellsDestroyed, "за тик гибнет ровно одна ячейка")
	require.Equal(t, fullPlayerCells-1, p.CellCount())

	after := make(map[vec.Vec3]bool, p.CellCount())
	for i := 0; i < p.CellCount(); i++ {
		after[p.CellPos(i).Sub(p.COM)] = true
	}
	removed := make([]vec.Vec3, 0, 1)
	for off := range before {
		if !after[off] {
			removed = append(removed, off)
		}
	}
	require.Len(t, removed, 1)
	assert.Equal(t, -7.5, removed[0].X, "гибнет ячейка на стороне входа снаряда")
	assert.InDelta(t, 0.5, math.Abs(removed[0].Y), 1e-9)
	assert.InDelta(t, 0.5, math.Abs(removed[0].Z), 1e-9)
}

func TestProjectileMutualDestruction_AfterImmunityExpires(t *testing.T) {
	s, obs := newTestWorld(t, nil)
	p := physics.NewPlayerBody("alice", vec.Vec3{X: 64, Y: 100, Z: 64})
	s.players["alice"] = p

	// Медленный снаряд дрейфует внутри собственного тела. Вертикально
	// тело и снаряд падают в ногу, поэтому относительное смещение мало.
	b := physics.NewProjectile(1001, p.COM, vec.Vec3{X: 4}, "alice")
	s.bodies = []*physics.MovingBody{b}

	for i := 0; i < physics.ImmunityFrames; i++ {
		s.Tick(testDT)
		require.Len(t, s.bodies, 1, "тик %d: иммунитет ещё действует", i+1)
		require.Equal(t, fullPlayerCells, p.CellCount())
	}

	s.Tick(testDT) // FramesAlive превышает порог
	assert.Empty(t, s.bodies, "иммунитет истёк — снаряд гибнет на теле метателя")
	assert.Equal(t, fullPlayerCells-1, p.CellCount())
	assert.Equal(t, 1, obs.last().CellsDestroyed)
}

func TestDebrisBouncesOffPlayer(t *testing.T) {
	s, _ := newTestWorld(t, nil)
	p := physics.NewPlayerBody("bob", vec.Vec3{X: 64, Y: 60, Z: 64})
	s.players["bob"] = p

	// Осколок ровно над одной из верхних ячеек тела (63.5, 75.5, 63.5)
	d := physics.NewDebris(2001, vec.Vec3{X: 63.5, Y: 76.0, Z: 63.5}, vec.Vec3{Y: -10})
	s.bodies = []*physics.MovingBody{d}

	stats := TickStats{}
	s.resolvePlayerCollisions(&stats)

	require.Len(t, s.bodies, 1, "осколок не уничтожает ячейки — он отскакивает")
	assert.Equal(t, fullPlayerCells, p.CellCount())
	assert.Zero(t, stats.CellsDestroyed)

	// Нормаль контакта вертикальна: тело принимает всё разделение
	// (0.9-0.5)*1.02 и полный импульс -(1+0.6)*(-10)
	assert.InDelta(t, 76.408, d.Pos.Y, 1e-9)
	assert.InDelta(t, 6.0, d.Vel.Y, 1e-9)
	assert.InDelta(t, 63.5, d.Pos.X, 1e-9, "вертикальный контакт не даёт бокового сноса")
}

//================ Разрушение и укладка через полный тик =================//

func TestDestructionScenario_FastImpact(t *testing.T) {
	s, obs := newTestWorld(t, world.NewFlatGenerator(7))
	h := s.grid.ColumnHeight(64, 64)
	require.Greater(t, h, 0)
	top := world.BaseHeight + h - 1 // верхняя занятая ячейка колонки

	// Старт чуть выше плато: за один тик тело входит в рельеф на скорости
	// выше порога разрушения
	b := physics.NewProjectile(1001, vec.Vec3{X: 64.5, Y: float64(top) + 1.75, Z: 64.5},
		vec.Vec3{Y: -30}, "alice")
	s.bodies = []*physics.MovingBody{b}
	solidBefore := s.grid.SolidCells()

	s.Tick(testDT)

	assert.False(t, s.grid.Get(64, top, 64), "ячейка удара выбита")
	assert.True(t, b.HasCollided, "защёлка разрушения взведена")
	assert.Less(t, s.grid.SolidCells(), solidBefore)

	st := obs.last()
	assert.Equal(t, 1, st.TerrainImpacts)
	assert.GreaterOrEqual(t, len(s.bodies), 1, "снаряд пережил удар")
	assert.Equal(t, st.DebrisSpawned, len(s.bodies)-1, "осколки вошли в список тел")

	snap := s.Snapshot()
	assert.True(t, snap.TerrainChanged)
	assert.NotEmpty(t, snap.Deltas, "изменения рельефа попали в снапшот тика")
	assert.NotEmpty(t, snap.DirtyColumns)
}

func TestSettleScenario_SlowDebrisJoinsTerrain(t *testing.T) {
	s, obs := newTestWorld(t, world.NewFlatGenerator(7))
	h := s.grid.ColumnHeight(20, 30)
	require.Greater(t, h, 0)
	top := world.BaseHeight + h - 1

	// Неподвижный осколок в пустой ячейке над плато
	pos := vec.Vec3{X: 20.5, Y: float64(top) + 1.5, Z: 30.5}
	d := physics.NewDebris(2001, pos, vec.Vec3{})
	s.bodies = []*physics.MovingBody{d}
	solidBefore := s.grid.SolidCells()

	s.Tick(testDT)

	target := vec.Vec3i{X: 20, Y: top + 1, Z: 30}
	assert.Empty(t, s.bodies, "замедлившийся осколок покидает список тел")
	assert.True(t, s.grid.GetCell(target), "осколок стал ячейкой рельефа")
	assert.Equal(t, solidBefore+1, s.grid.SolidCells())
	assert.Equal(t, 1, obs.last().Settled)

	snap := s.Snapshot()
	assert.True(t, snap.TerrainChanged)
	require.NotEmpty(t, snap.Deltas)
	assert.Equal(t, world.CellDelta{Pos: target, Solid: true}, snap.Deltas[len(snap.Deltas)-1])
}

func TestEventsReachBusOnJoin(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	grid := world.NewVoxelGrid()
	world.NewFlatGenerator(7).Generate(grid)
	s := NewSimulationWorld(grid, &config.PhysicsConfig{}, bus, nil)
	s.rng = rand.New(rand.NewSource(42))

	received := make(chan *eventbus.Envelope, 4)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{EventPlayerJoined}},
		func(ctx context.Context, ev *eventbus.Envelope) {
			received <- ev
		})
	require.NoError(t, err)

	joinPlayer(t, s, "alice")

	select {
	case ev := <-received:
		assert.Equal(t, eventSource, ev.Source)
		assert.Equal(t, prioPlayer, ev.Priority)
		var payload PlayerEventPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		assert.Equal(t, "alice", payload.PlayerID)
		assert.Equal(t, fullPlayerCells, payload.CellCount)
	case <-time.After(2 * time.Second):
		t.Fatal("событие подключения не дошло до шины")
	}
}
