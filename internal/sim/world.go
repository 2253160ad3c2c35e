package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jplayz2468/Voxel-Game/internal/config"
	"github.com/Jplayz2468/Voxel-Game/internal/eventbus"
	"github.com/Jplayz2468/Voxel-Game/internal/logging"
	"github.com/Jplayz2468/Voxel-Game/internal/physics"
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

const (
	// Ёмкость очереди намерений; переполнение роняет намерение с warn
	intentQueueSize = 1024

	// Малые ID зарезервированы, тела нумеруются с 1000
	firstBodyID = 1000

	// Отступ точки спавна игрока от стен мира и высота над основанием
	spawnMargin   = 20.0
	spawnAltitude = 60.0

	// Коэффициент ограничения dt: затянувшийся тик не телепортирует тела
	dtClampFactor = 3.0
)

// JoinReply — ответ симуляции на подключение игрока: точка спавна и
// полный слепок рельефа, снятый внутри того же тика, что создал тело.
type JoinReply struct {
	Spawn      vec.Vec3
	Tick       uint64
	GridPacked []byte
}

// Намерения, накапливаемые между тиками. Применяются строго в начале
// тика — сетевые горутины никогда не трогают мир напрямую.
type intent interface{}

type joinIntent struct {
	id    string
	reply chan JoinReply
}

type leaveIntent struct {
	id string
}

type keysIntent struct {
	id   string
	keys physics.MoveKeys
}

type orientationIntent struct {
	id    string
	yaw   float64
	pitch float64
}

type jumpIntent struct {
	id string
}

type shootIntent struct {
	throwerID string
	origin    vec.Vec3
	dir       vec.Vec3
}

type terrainQueryIntent struct {
	reply chan TerrainInfo
}

// TerrainInfo — сводка рельефа, снятая внутри тика. Используется REST-слоем:
// решётка принадлежит горутине симуляции, читать её напрямую нельзя.
type TerrainInfo struct {
	SolidCells int
	MinHeight  int
	MaxHeight  int
}

// SimulationWorld владеет всем изменяемым состоянием мира: решёткой,
// телами игроков и свободными вокселями. Всё состояние принадлежит
// горутине тика; наружу уходят только атомарные снапшоты.
type SimulationWorld struct {
	grid    *world.VoxelGrid
	players map[string]*physics.PlayerBody
	bodies  []*physics.MovingBody

	nextBodyID uint64
	tick       uint64
	rng        *rand.Rand

	intents  chan intent
	snapshot atomic.Pointer[Snapshot]

	feedMu sync.RWMutex
	feeds  []chan *Snapshot

	nominalDT float64
	clampDT   bool
	maxBodies int

	bus      eventbus.EventBus
	observer TickObserver
	log      *logging.Logger
	ctx      context.Context
}

// NewSimulationWorld создаёт симуляцию поверх готового (сгенерированного)
// мира. bus может быть nil — тогда события не публикуются.
func NewSimulationWorld(grid *world.VoxelGrid, cfg *config.PhysicsConfig, bus eventbus.EventBus, observer TickObserver) *SimulationWorld {
	if observer == nil {
		observer = NopObserver{}
	}
	grid.RebuildHeights()
	// Дельты генерации — не изменения тика; полный слепок клиент
	// получает при подключении
	grid.ConsumeDirty()

	s := &SimulationWorld{
		grid:       grid,
		players:    make(map[string]*physics.PlayerBody),
		nextBodyID: firstBodyID,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		intents:    make(chan intent, intentQueueSize),
		nominalDT:  1.0 / float64(cfg.GetTickRate()),
		clampDT:    cfg.GetClampDT(),
		maxBodies:  cfg.GetMaxMovingBodies(),
		bus:        bus,
		observer:   observer,
		log:        logging.GetSimLogger(),
		ctx:        context.Background(),
	}
	s.snapshot.Store(s.buildSnapshot(0, nil, nil, false))
	return s
}

// Run крутит цикл тиков до отмены контекста. dt измеряется по настенным
// часам: при подвисании процесса тики не «догоняются», а растягиваются
// (с ограничением сверху, если включено).
func (s *SimulationWorld) Run(ctx context.Context) {
	s.ctx = ctx
	interval := time.Duration(float64(time.Second) * s.nominalDT)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("⚙️  Симуляция запущена: тик %v, потолок тел %d", interval, s.maxBodies)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Симуляция остановлена на тике %d", s.tick)
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.Tick(s.effectiveDT(dt))
		}
	}
}

// effectiveDT ограничивает измеренный dt сверху: подвисший планировщик
// растягивает тик, но не телепортирует тела сквозь рельеф.
func (s *SimulationWorld) effectiveDT(dt float64) float64 {
	if s.clampDT && dt > dtClampFactor*s.nominalDT {
		s.log.Warn("Тик растянулся до %.1fms — dt ограничен", dt*1000)
		return dtClampFactor * s.nominalDT
	}
	return dt
}

// Tick выполняет один шаг симуляции. Порядок фаз фиксирован: намерения,
// игроки, свободные тела, парные столкновения, укладка, пересчёт высот,
// снапшот.
func (s *SimulationWorld) Tick(dt float64) {
	started := time.Now()
	s.tick++
	stats := TickStats{Tick: s.tick, DT: dt}

	s.applyIntents(&stats)
	s.updatePlayers(dt)
	s.updateBodies(dt, &stats)
	s.resolveBodyPairs()
	s.resolvePlayerCollisions(&stats)
	s.settleBodies(&stats)

	if s.grid.HeightsStale() {
		s.grid.RebuildHeights()
	}

	s.publishSnapshot(dt)

	stats.Duration = time.Since(started)
	stats.Players = len(s.players)
	stats.Bodies = len(s.bodies)
	stats.SolidCells = s.grid.SolidCells()
	s.observer.OnTick(stats)
}

// Snapshot возвращает снапшот последнего завершённого тика
func (s *SimulationWorld) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// SnapshotFeed возвращает канал снапшотов для рассылки. Канал ёмкостью 1
// с семантикой «последний побеждает»: медленный потребитель видит только
// свежайший тик и никогда не тормозит симуляцию.
func (s *SimulationWorld) SnapshotFeed() <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)
	s.feedMu.Lock()
	s.feeds = append(s.feeds, ch)
	s.feedMu.Unlock()
	return ch
}

//================ Входящие намерения =================//

// AddPlayer регистрирует игрока и ждёт ответа симуляции с точкой спавна
// и слепком рельефа. Блокируется не дольше, чем до отмены ctx.
func (s *SimulationWorld) AddPlayer(ctx context.Context, id string) (JoinReply, error) {
	reply := make(chan JoinReply, 1)
	select {
	case s.intents <- joinIntent{id: id, reply: reply}:
	case <-ctx.Done():
		return JoinReply{}, fmt.Errorf("очередь намерений занята: %w", ctx.Err())
	}

	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return JoinReply{}, fmt.Errorf("симуляция не ответила на подключение: %w", ctx.Err())
	}
}

// RemovePlayer удаляет тело игрока вместе со всеми ячейками
func (s *SimulationWorld) RemovePlayer(id string) {
	s.enqueue(leaveIntent{id: id})
}

// TerrainInfo запрашивает у симуляции сводку рельефа и ждёт ответа
// не дольше, чем до отмены ctx.
func (s *SimulationWorld) TerrainInfo(ctx context.Context) (TerrainInfo, error) {
	reply := make(chan TerrainInfo, 1)
	select {
	case s.intents <- terrainQueryIntent{reply: reply}:
	case <-ctx.Done():
		return TerrainInfo{}, fmt.Errorf("очередь намерений занята: %w", ctx.Err())
	}

	select {
	case info := <-reply:
		return info, nil
	case <-ctx.Done():
		return TerrainInfo{}, fmt.Errorf("симуляция не ответила на запрос рельефа: %w", ctx.Err())
	}
}

// SetMovementKeys обновляет состояние клавиш движения игрока
func (s *SimulationWorld) SetMovementKeys(id string, keys physics.MoveKeys) {
	s.enqueue(keysIntent{id: id, keys: keys})
}

// SetCameraOrientation обновляет ориентацию камеры игрока
func (s *SimulationWorld) SetCameraOrientation(id string, yaw, pitch float64) {
	s.enqueue(orientationIntent{id: id, yaw: yaw, pitch: pitch})
}

// Jump ставит в очередь прыжок игрока
func (s *SimulationWorld) Jump(id string) {
	s.enqueue(jumpIntent{id: id})
}

// SpawnProjectile ставит в очередь выстрел. Направление должно быть
// уже нормализовано сетевым слоем; нулевое направление отбрасывается.
func (s *SimulationWorld) SpawnProjectile(origin, dir vec.Vec3, throwerID string) {
	s.enqueue(shootIntent{throwerID: throwerID, origin: origin, dir: dir})
}

// enqueue добавляет намерение без блокировки; при переполнении очереди
// намерение теряется с предупреждением.
func (s *SimulationWorld) enqueue(it intent) {
	select {
	case s.intents <- it:
	default:
		s.log.Warn("Очередь намерений переполнена, %T отброшено", it)
	}
}

// applyIntents выгребает все накопленные намерения. Новые намерения,
// пришедшие во время выгребания, ждут следующего тика.
func (s *SimulationWorld) applyIntents(stats *TickStats) {
	for i := 0; i < intentQueueSize; i++ {
		select {
		case it := <-s.intents:
			s.applyIntent(it, stats)
		default:
			return
		}
	}
}

func (s *SimulationWorld) applyIntent(it intent, stats *TickStats) {
	switch in := it.(type) {
	case joinIntent:
		s.handleJoin(in)
	case leaveIntent:
		s.handleLeave(in.id)
	case keysIntent:
		if p, ok := s.players[in.id]; ok {
			p.SetKeys(in.keys)
		}
	case orientationIntent:
		if p, ok := s.players[in.id]; ok {
			p.SetOrientation(in.yaw, in.pitch)
		}
	case jumpIntent:
		if p, ok := s.players[in.id]; ok {
			p.Jump()
		}
	case shootIntent:
		s.handleShoot(in, stats)
	case terrainQueryIntent:
		minH, maxH := s.grid.HeightBounds()
		select {
		case in.reply <- TerrainInfo{SolidCells: s.grid.SolidCells(), MinHeight: minH, MaxHeight: maxH}:
		default:
		}
	default:
		s.log.Warn("Неизвестное намерение: %T", it)
	}
}

func (s *SimulationWorld) handleJoin(in joinIntent) {
	if _, exists := s.players[in.id]; exists {
		s.log.Warn("Повторное подключение игрока %s — тело пересоздано", in.id)
	}

	span := float64(world.Size) - 2*spawnMargin
	spawn := vec.Vec3{
		X: spawnMargin + s.rng.Float64()*span,
		Y: float64(world.BaseHeight) + spawnAltitude,
		Z: spawnMargin + s.rng.Float64()*span,
	}
	body := physics.NewPlayerBody(in.id, spawn)
	s.players[in.id] = body

	s.log.Info("🎮 Игрок %s вошёл в мир: спавн (%.1f, %.1f, %.1f), ячеек %d",
		in.id, spawn.X, spawn.Y, spawn.Z, body.CellCount())
	s.publishEvent(EventPlayerJoined, prioPlayer, PlayerEventPayload{
		PlayerID:  in.id,
		Pos:       spawn,
		CellCount: body.CellCount(),
	})

	select {
	case in.reply <- JoinReply{Spawn: spawn, Tick: s.tick, GridPacked: s.grid.PackBits()}:
	default:
	}
}

func (s *SimulationWorld) handleLeave(id string) {
	body, ok := s.players[id]
	if !ok {
		return
	}
	delete(s.players, id)

	s.log.Info("Игрок %s покинул мир (осталось ячеек: %d)", id, body.CellCount())
	s.publishEvent(EventPlayerLeft, prioPlayer, PlayerEventPayload{
		PlayerID:  id,
		Pos:       body.COM,
		CellCount: body.CellCount(),
	})
}

func (s *SimulationWorld) handleShoot(in shootIntent, stats *TickStats) {
	dir := in.dir.Normalized()
	if dir == (vec.Vec3{}) {
		s.log.Debug("Выстрел игрока %s с нулевым направлением отброшен", in.throwerID)
		return
	}
	if len(s.bodies) >= s.maxBodies {
		s.log.Warn("Потолок тел (%d) достигнут — выстрел игрока %s отброшен", s.maxBodies, in.throwerID)
		return
	}

	s.nextBodyID++
	body := physics.NewProjectile(s.nextBodyID, in.origin, dir.Mul(physics.ProjectileSpeed), in.throwerID)
	s.bodies = append(s.bodies, body)
	stats.ProjectilesFired++

	s.publishEvent(EventProjectileFired, prioBody, ProjectileFiredPayload{
		BodyID:    body.ID,
		ThrowerID: in.throwerID,
		Origin:    body.Pos,
		Velocity:  body.Vel,
	})
}

//================ Фазы тика =================//

func (s *SimulationWorld) updatePlayers(dt float64) {
	for _, p := range s.players {
		p.Update(s.grid, dt)
	}
}

// updateBodies интегрирует свободные воксели: гравитация, свип по
// решётке, разрушение рельефа при быстром ударе, границы мира.
// Осколки, рождённые разрушением, вступают в игру со следующего тика.
func (s *SimulationWorld) updateBodies(dt float64, stats *TickStats) {
	var born []*physics.MovingBody

	for _, b := range s.bodies {
		b.LastPos = b.Pos
		b.FramesAlive++
		b.Vel.Y -= physics.Gravity * dt

		impact, hit := physics.SweepMove(s.grid, b, dt)
		if hit && impact.Speed > physics.DestructionSpeed && !b.HasCollided {
			b.HasCollided = true
			spawns := physics.DestroyTerrain(s.grid, impact.Cell, impact.Velocity, impact.Speed, s.rng)
			stats.TerrainImpacts++

			spawned := 0
			for _, sp := range spawns {
				if len(s.bodies)+len(born) >= s.maxBodies {
					break
				}
				s.nextBodyID++
				born = append(born, physics.NewDebris(s.nextBodyID, sp.Pos, sp.Vel))
				spawned++
			}
			stats.DebrisSpawned += spawned
			stats.DebrisDropped += len(spawns) - spawned

			s.publishEvent(EventTerrainDestroyed, prioTerrain, TerrainDestroyedPayload{
				Cell:        impact.Cell,
				ImpactSpeed: impact.Speed,
				DebrisCount: len(spawns),
				ByBody:      b.ID,
			})
		}

		physics.ApplyWorldBounds(b)
	}

	if len(born) > 0 {
		s.bodies = append(s.bodies, born...)
	}
	if stats.DebrisDropped > 0 {
		s.log.Warn("Потолок тел (%d): %d осколков не создано", s.maxBodies, stats.DebrisDropped)
	}
}

// resolveBodyPairs разрешает столкновения свободных вокселей между собой
func (s *SimulationWorld) resolveBodyPairs() {
	for i := 0; i < len(s.bodies); i++ {
		for j := i + 1; j < len(s.bodies); j++ {
			physics.ResolvePair(s.bodies[i], s.bodies[j])
		}
	}
}

// resolvePlayerCollisions сталкивает свободные воксели с ячейками тел
// игроков: осколки отскакивают, снаряд уничтожает первую ячейку на
// своём пути за тик — и гибнет сам.
func (s *SimulationWorld) resolvePlayerCollisions(stats *TickStats) {
	if len(s.players) == 0 || len(s.bodies) == 0 {
		return
	}

	// Стабильный порядок обхода игроков: карта не даёт детерминизма
	ids := s.sortedPlayerIDs()

	alive := s.bodies[:0]
	for _, b := range s.bodies {
		destroyed := false
		switch b.Kind {
		case physics.KindDebris:
			s.bounceDebris(b, ids)
		case physics.KindProjectile:
			destroyed = s.projectileVsPlayers(b, ids, stats)
		}
		if !destroyed {
			alive = append(alive, b)
		}
	}
	s.bodies = alive
}

// bounceDebris отталкивает осколок от ячеек всех тел игроков
func (s *SimulationWorld) bounceDebris(b *physics.MovingBody, ids []string) {
	for _, id := range ids {
		p := s.players[id]
		if b.Pos.DistanceTo(p.COM) > p.BoundingRadius()+b.Size {
			continue
		}
		for i := 0; i < p.CellCount(); i++ {
			physics.ResolveAgainstPinned(b, p.CellPos(i), physics.PlayerCellSize)
		}
	}
}

// projectileVsPlayers ищет самую раннюю ячейку на пути снаряда за тик.
// Попадание взаимно: ячейка снимается с тела, снаряд исчезает.
// Возвращает true, если снаряд уничтожен.
func (s *SimulationWorld) projectileVsPlayers(b *physics.MovingBody, ids []string, stats *TickStats) bool {
	radius := b.Size + physics.PlayerCellSize
	travel := b.Pos.Sub(b.LastPos).Length()
	bestT := -1.0
	var bestPlayer *physics.PlayerBody
	bestCell := -1

	for _, id := range ids {
		p := s.players[id]

		// Иммунитет метателя: снаряд игнорирует своё тело первые кадры.
		// Пропавший метатель иммунитета не даёт.
		if b.OwnerID == id && b.ImmunityActive(p.COM) {
			continue
		}

		// Грубая сфера тела относительно всего пути за тик
		if b.LastPos.DistanceTo(p.COM) > p.BoundingRadius()+b.Size+travel {
			continue
		}

		for i := 0; i < p.CellCount(); i++ {
			t, ok := physics.SweepSegmentSphere(b.LastPos, b.Pos, p.CellPos(i), radius)
			if !ok {
				continue
			}
			if bestT < 0 || t < bestT {
				bestT = t
				bestPlayer = p
				bestCell = i
			}
		}
	}

	if bestPlayer == nil {
		return false
	}

	bestPlayer.RemoveCell(bestCell)
	stats.CellsDestroyed++
	s.log.Debug("Снаряд %d снял ячейку тела %s (осталось %d)",
		b.ID, bestPlayer.ID, bestPlayer.CellCount())
	return true
}

// settleBodies укладывает замедлившиеся воксели обратно в решётку
func (s *SimulationWorld) settleBodies(stats *TickStats) {
	alive := s.bodies[:0]
	for _, b := range s.bodies {
		if physics.SettleEligible(b) {
			if cell, ok := physics.TrySettle(s.grid, b); ok {
				stats.Settled++
				s.publishEvent(EventBodySettled, prioBody, BodySettledPayload{
					BodyID: b.ID,
					Kind:   b.Kind.String(),
					Cell:   cell,
				})
				continue
			}
		}
		alive = append(alive, b)
	}
	s.bodies = alive
}

//================ Снапшот и события =================//

func (s *SimulationWorld) publishSnapshot(dt float64) {
	cols, deltas, changed := s.grid.ConsumeDirty()
	snap := s.buildSnapshot(dt, deltas, cols, changed)
	s.snapshot.Store(snap)

	// Последний побеждает: застрявший потребитель теряет старый тик
	s.feedMu.RLock()
	for _, feed := range s.feeds {
		select {
		case feed <- snap:
		default:
			select {
			case <-feed:
			default:
			}
			select {
			case feed <- snap:
			default:
			}
		}
	}
	s.feedMu.RUnlock()
}

func (s *SimulationWorld) buildSnapshot(dt float64, deltas []world.CellDelta, cols []vec.Vec2, changed bool) *Snapshot {
	snap := &Snapshot{
		Tick:           s.tick,
		DT:             dt,
		Time:           time.Now().UTC(),
		Players:        make([]PlayerSnapshot, 0, len(s.players)),
		Bodies:         make([]BodySnapshot, 0, len(s.bodies)),
		TerrainChanged: changed,
		Deltas:         deltas,
		DirtyColumns:   cols,
		SolidCells:     s.grid.SolidCells(),
	}

	for _, id := range s.sortedPlayerIDs() {
		p := s.players[id]
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID:          p.ID,
			Pos:         p.COM,
			Yaw:         p.Yaw,
			Pitch:       p.Pitch,
			Grounded:    p.Grounded,
			VerticalVel: p.VerticalVel,
			CellCount:   p.CellCount(),
		})
	}
	for _, b := range s.bodies {
		snap.Bodies = append(snap.Bodies, BodySnapshot{
			ID:    b.ID,
			Kind:  b.Kind.String(),
			Pos:   b.Pos,
			Owner: b.OwnerID,
		})
	}
	return snap
}

func (s *SimulationWorld) sortedPlayerIDs() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *SimulationWorld) publishEvent(eventType string, priority int, payload interface{}) {
	if s.bus == nil {
		return
	}
	env, err := eventbus.NewEnvelope(eventSource, eventType, priority, payload)
	if err != nil {
		s.log.Warn("Событие %s не собрано: %v", eventType, err)
		return
	}
	if err := s.bus.Publish(s.ctx, env); err != nil {
		s.log.Debug("Событие %s не опубликовано: %v", eventType, err)
	}
}
