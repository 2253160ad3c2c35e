// Package network реализует игровой WebSocket-шлюз: принимает
// подключения игроков, переводит их сообщения в намерения симуляции и
// рассылает снапшоты мира после каждого тика.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/Jplayz2468/Voxel-Game/internal/config"
	"github.com/Jplayz2468/Voxel-Game/internal/logging"
	"github.com/Jplayz2468/Voxel-Game/internal/sim"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

// Конфигурация WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене следует ограничить доступ
	},
}

const (
	writeWait      = 10 * time.Second // Дедлайн записи одного сообщения
	pongWait       = 60 * time.Second // Ожидание pong до разрыва соединения
	pingPeriod     = 30 * time.Second // Период пингов
	maxMessageSize = 4096             // Лимит размера входящего сообщения
	sendBuffer     = 256              // Буфер исходящих сообщений клиента
	joinWait       = 5 * time.Second  // Ожидание входа в симуляцию
	idleTimeout    = 60 * time.Second // Разрыв молчащего клиента
)

// Client представляет подключенного клиента
type Client struct {
	conn  *websocket.Conn // WebSocket соединение
	send  chan []byte     // Канал для отправки сообщений
	id    string          // UUID клиента, он же ID тела игрока в симуляции
	shots *rate.Limiter   // Ограничитель частоты выстрелов

	mu           sync.Mutex // Защищает lastActivity и closed
	lastActivity time.Time  // Время последнего сообщения от клиента
	closed       bool       // Канал send закрыт, класть в него нельзя
}

// touch отмечает активность клиента
func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// activity возвращает время последнего сообщения от клиента
func (c *Client) activity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// sendAsync кладёт сообщение в буфер клиента, не блокируясь.
// Возвращает false, если буфер полон или клиент уже отключён.
func (c *Client) sendAsync(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Gateway обрабатывает сетевые соединения игроков. Сетевые горутины
// никогда не трогают мир напрямую: всё, что приходит от клиентов,
// превращается в намерения симуляции, а обратно уходят только готовые
// снапшоты.
type Gateway struct {
	sim     *sim.SimulationWorld
	phys    *config.PhysicsConfig
	metrics *GatewayMetrics

	clients    map[string]*Client // Карта подключенных клиентов
	register   chan *Client       // Канал для регистрации клиентов
	unregister chan *Client       // Канал для отключения клиентов
	mu         sync.RWMutex       // Защищает карту клиентов от читателей извне

	compressor *zstd.Encoder
	log        *logging.Logger
}

// NewGateway создает новый игровой шлюз. metrics может быть nil —
// тогда счётчики не ведутся.
func NewGateway(s *sim.SimulationWorld, phys *config.PhysicsConfig, metrics *GatewayMetrics) (*Gateway, error) {
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("инициализация zstd: %w", err)
	}

	return &Gateway{
		sim:        s,
		phys:       phys,
		metrics:    metrics,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		compressor: compressor,
		log:        logging.GetNetworkLogger(),
	}, nil
}

// Run обрабатывает регистрацию и отключение клиентов и рассылает
// снапшоты. Карта клиентов меняется только этой горутиной: закрыть
// канал клиента и удалить его может лишь она, поэтому двойного close
// не бывает. Блокируется до отмены контекста.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(idleTimeout / 2)
	defer ticker.Stop()

	feed := g.sim.SnapshotFeed()
	g.log.Info("🎮 Игровой шлюз запущен")

	for {
		select {
		case client := <-g.register:
			g.mu.Lock()
			g.clients[client.id] = client
			n := len(g.clients)
			g.mu.Unlock()
			g.metrics.ConnectionOpened(n)
			g.log.Info("🎮 Игрок подключился: %s (всего %d)", client.id, n)

		case client := <-g.unregister:
			g.removeClient(client.id, "отключение")

		case snap := <-feed:
			g.broadcastState(snap)

		case now := <-ticker.C:
			g.dropIdle(now)

		case <-ctx.Done():
			g.drain()
			g.log.Info("Игровой шлюз остановлен")
			return
		}
	}
}

// HandleConnection обрабатывает новое WebSocket подключение: поднимает
// соединение, заводит игрока в симуляции и отправляет ему welcome с
// полным слепком решётки.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Апгрейд соединения: %v", err)
		return
	}

	id := uuid.NewString()

	joinCtx, cancel := context.WithTimeout(context.Background(), joinWait)
	reply, err := g.sim.AddPlayer(joinCtx, id)
	cancel()
	if err != nil {
		g.log.Error("Вход игрока %s в симуляцию: %v", id, err)
		g.reject(conn, "мир не принимает подключения")
		return
	}

	welcome := WelcomePayload{
		PlayerID:   id,
		Spawn:      reply.Spawn,
		Tick:       reply.Tick,
		WorldSize:  world.Size,
		BaseHeight: world.BaseHeight,
		TickRate:   g.phys.GetTickRate(),
		GridZstd:   g.compressor.EncodeAll(reply.GridPacked, nil),
	}
	data, err := EncodeServerMessage(MsgWelcome, welcome)
	if err != nil {
		g.log.Error("Сериализация welcome для %s: %v", id, err)
		g.sim.RemovePlayer(id)
		conn.Close()
		return
	}

	client := &Client{
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		id:           id,
		shots:        rate.NewLimiter(rate.Limit(g.phys.GetShotsPerSecond()), g.phys.GetShotBurst()),
		lastActivity: time.Now(),
	}
	client.send <- data // буфер пуст, место гарантировано

	g.register <- client

	// Запускаем горутины для чтения и записи
	go g.readPump(client)
	go g.writePump(client)
}

// ClientCount возвращает количество подключенных клиентов
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// readPump асинхронно читает сообщения от клиента
func (g *Gateway) readPump(client *Client) {
	defer func() {
		g.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.log.Warn("Чтение от %s: %v", client.id, err)
			}
			return
		}

		client.touch()

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.log.Debug("Битое сообщение от %s: %v", client.id, err)
			logging.LogProtocolError(client.id, err, raw)
			g.metrics.ParseError()
			continue
		}

		g.dispatch(client, &msg)
	}
}

// writePump асинхронно отправляет сообщения клиенту
func (g *Gateway) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрыт
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch переводит сообщение клиента в намерение симуляции
func (g *Gateway) dispatch(client *Client, msg *ClientMessage) {
	switch msg.Type {
	case MsgInput:
		g.metrics.MessageIn(MsgInput)
		var p InputPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			g.log.Debug("Нагрузка input от %s: %v", client.id, err)
			g.metrics.ParseError()
			return
		}
		g.sim.SetMovementKeys(client.id, p.Keys())

	case MsgLook:
		g.metrics.MessageIn(MsgLook)
		var p LookPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			g.log.Debug("Нагрузка look от %s: %v", client.id, err)
			g.metrics.ParseError()
			return
		}
		p.Sanitize()
		g.sim.SetCameraOrientation(client.id, p.Yaw, p.Pitch)

	case MsgJump:
		g.metrics.MessageIn(MsgJump)
		g.sim.Jump(client.id)

	case MsgShoot:
		g.metrics.MessageIn(MsgShoot)
		g.handleShoot(client, msg.Payload)

	default:
		g.metrics.MessageIn("unknown")
		g.sendError(client, "неизвестный тип сообщения: "+msg.Type)
	}
}

// handleShoot спавнит снаряд из центра масс стрелка. Направление даёт
// клиент, позицию — последний снапшот: до появления игрока в снапшоте
// выстрел невозможен.
func (g *Gateway) handleShoot(client *Client, payload json.RawMessage) {
	if !client.shots.Allow() {
		g.metrics.ShotThrottled()
		g.log.Debug("Выстрел %s отброшен ограничителем частоты", client.id)
		return
	}

	var p ShootPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		g.log.Debug("Нагрузка shoot от %s: %v", client.id, err)
		g.metrics.ParseError()
		return
	}
	p.Sanitize()

	snap := g.sim.Snapshot()
	if snap == nil {
		return
	}
	for i := range snap.Players {
		if snap.Players[i].ID == client.id {
			g.sim.SpawnProjectile(snap.Players[i].Pos, p.Dir, client.id)
			return
		}
	}
	g.log.Debug("Выстрел %s до появления в снапшоте — пропущен", client.id)
}

// sendError отправляет ошибку клиенту, не блокируясь: если буфер полон
// или клиент уже отключён, сообщение теряется
func (g *Gateway) sendError(client *Client, reason string) {
	data, err := EncodeServerMessage(MsgError, ErrorPayload{Message: reason})
	if err != nil {
		return
	}
	client.sendAsync(data)
}

// reject отправляет ошибку и закрывает соединение, не регистрируя клиента
func (g *Gateway) reject(conn *websocket.Conn, reason string) {
	if data, err := EncodeServerMessage(MsgError, ErrorPayload{Message: reason}); err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, data)
	}
	conn.Close()
}

// broadcastState рассылает снапшот всем клиентам. Сериализация одна на
// тик. Клиент, не успевающий вычитывать снапшоты, отключается —
// медленный получатель не должен копить у сервера память.
func (g *Gateway) broadcastState(snap *sim.Snapshot) {
	data, err := EncodeServerMessage(MsgState, snap)
	if err != nil {
		g.log.Error("Сериализация снапшота тика %d: %v", snap.Tick, err)
		return
	}

	var slow []string
	sent := 0
	g.mu.RLock()
	for id, client := range g.clients {
		if client.sendAsync(data) {
			sent++
		} else {
			slow = append(slow, id)
		}
	}
	g.mu.RUnlock()

	for _, id := range slow {
		g.metrics.SendOverflow()
		g.removeClient(id, "переполнен буфер отправки")
	}
	g.metrics.BroadcastBytes(sent * len(data))
}

// dropIdle отключает клиентов, не приславших ни одного сообщения за
// idleTimeout. Pong продлевает только дедлайн чтения: живое, но
// молчащее соединение всё равно считается брошенным.
func (g *Gateway) dropIdle(now time.Time) {
	var idle []string
	g.mu.RLock()
	for id, client := range g.clients {
		if now.Sub(client.activity()) > idleTimeout {
			idle = append(idle, id)
		}
	}
	g.mu.RUnlock()

	for _, id := range idle {
		g.removeClient(id, "нет активности")
	}
}

// removeClient убирает клиента из карты и из симуляции. Повторный
// вызов для уже удалённого ID безвреден: пампы и рассылка могут
// сообщить об одном клиенте наперегонки.
func (g *Gateway) removeClient(id string, reason string) {
	g.mu.Lock()
	client, ok := g.clients[id]
	if ok {
		client.mu.Lock()
		client.closed = true
		close(client.send)
		client.mu.Unlock()
		delete(g.clients, id)
	}
	n := len(g.clients)
	g.mu.Unlock()

	if !ok {
		return
	}
	g.sim.RemovePlayer(id)
	g.metrics.ConnectionClosed(n)
	g.log.Info("🎮 Игрок отключился: %s (%s, осталось %d)", id, reason, n)
}

// drain закрывает все соединения при остановке и дожидается, пока
// пампы вернут клиентов через unregister
func (g *Gateway) drain() {
	g.mu.RLock()
	for _, client := range g.clients {
		client.conn.Close()
	}
	g.mu.RUnlock()

	for g.ClientCount() > 0 {
		client := <-g.unregister
		g.removeClient(client.id, "остановка сервера")
	}
}
