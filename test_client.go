package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"github.com/Jplayz2468/Voxel-Game/internal/network"
	"github.com/Jplayz2468/Voxel-Game/internal/sim"
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

// Ручной клиент для анализа игрового протокола: подключается к живому
// серверу, проходит welcome → движение → выстрел и печатает размеры и
// содержимое кадров.

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "адрес игрового WebSocket")
	flag.Parse()

	fmt.Println("=== ТЕСТОВЫЙ КЛИЕНТ ДЛЯ АНАЛИЗА ПРОТОКОЛА ===")

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("Ошибка подключения: %v", err)
	}
	defer conn.Close()

	fmt.Println("✅ Подключен к серверу")

	// Тест 1: Welcome
	fmt.Println("\n=== ТЕСТ 1: WELCOME ===")
	welcome := testWelcome(conn)

	// Тест 2: Движение
	fmt.Println("\n=== ТЕСТ 2: ДВИЖЕНИЕ ===")
	testMovement(conn, welcome.PlayerID)

	// Тест 3: Выстрел
	fmt.Println("\n=== ТЕСТ 3: ВЫСТРЕЛ ===")
	testShoot(conn, welcome.PlayerID)

	fmt.Println("\n=== ТЕСТИРОВАНИЕ ЗАВЕРШЕНО ===")
}

type serverFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readFrame читает один кадр от сервера с дедлайном
func readFrame(conn *websocket.Conn) (*serverFrame, int) {
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		log.Fatalf("❌ Ошибка чтения кадра: %v", err)
	}

	var frame serverFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Fatalf("❌ Битый кадр (%d байт): %v", len(raw), err)
	}
	return &frame, len(raw)
}

// readState читает кадры до ближайшего состояния мира
func readState(conn *websocket.Conn) (*sim.Snapshot, int) {
	for {
		frame, size := readFrame(conn)
		if frame.Type != network.MsgState {
			continue
		}
		var snap sim.Snapshot
		if err := json.Unmarshal(frame.Payload, &snap); err != nil {
			log.Fatalf("❌ Битое состояние: %v", err)
		}
		return &snap, size
	}
}

// send отправляет клиентское сообщение
func send(conn *websocket.Conn, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("❌ Сериализация %s: %v", msgType, err)
	}
	fmt.Printf("📤 Отправка %s (%d байт)\n", msgType, len(data))
	if err := conn.WriteJSON(network.ClientMessage{Type: msgType, Payload: data}); err != nil {
		log.Fatalf("❌ Отправка %s: %v", msgType, err)
	}
}

func testWelcome(conn *websocket.Conn) *network.WelcomePayload {
	frame, size := readFrame(conn)
	if frame.Type != network.MsgWelcome {
		log.Fatalf("❌ Ожидался welcome, получен %s", frame.Type)
	}

	var welcome network.WelcomePayload
	if err := json.Unmarshal(frame.Payload, &welcome); err != nil {
		log.Fatalf("❌ Битый welcome: %v", err)
	}

	fmt.Printf("📥 Welcome: %d байт\n", size)
	fmt.Printf("   Игрок: %s\n", welcome.PlayerID)
	fmt.Printf("   Спавн: (%.1f, %.1f, %.1f), тик %d, частота %d Гц\n",
		welcome.Spawn.X, welcome.Spawn.Y, welcome.Spawn.Z, welcome.Tick, welcome.TickRate)
	fmt.Printf("   Мир: %d³, основание %d\n", welcome.WorldSize, welcome.BaseHeight)

	// Распаковываем слепок решётки
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		log.Fatalf("❌ Инициализация zstd: %v", err)
	}
	defer decoder.Close()

	packed, err := decoder.DecodeAll(welcome.GridZstd, nil)
	if err != nil {
		log.Fatalf("❌ Распаковка решётки: %v", err)
	}

	expected := world.Size * world.Size * world.Size / 8
	fmt.Printf("   Решётка: %d байт сжато → %d байт (ожидалось %d)\n",
		len(welcome.GridZstd), len(packed), expected)
	logHexDump("GRID (первые байты)", packed[:32])

	return &welcome
}

func testMovement(conn *websocket.Conn, playerID string) {
	start, _ := readState(conn)
	startPos := findPlayer(start, playerID)
	fmt.Printf("📥 Тик %d: позиция (%.2f, %.2f, %.2f)\n", start.Tick, startPos.X, startPos.Y, startPos.Z)

	send(conn, network.MsgLook, network.LookPayload{Yaw: 0, Pitch: 0})
	send(conn, network.MsgInput, network.InputPayload{W: true})

	// Даём симуляции прокрутить движение
	deadline := time.Now().Add(1 * time.Second)
	var last *sim.Snapshot
	for time.Now().Before(deadline) {
		last, _ = readState(conn)
	}
	send(conn, network.MsgInput, network.InputPayload{})

	endPos := findPlayer(last, playerID)
	fmt.Printf("📥 Тик %d: позиция (%.2f, %.2f, %.2f)\n", last.Tick, endPos.X, endPos.Y, endPos.Z)
	fmt.Printf("   Пройдено: %.2f\n", endPos.Sub(startPos).Length())
}

func testShoot(conn *websocket.Conn, playerID string) {
	send(conn, network.MsgShoot, network.ShootPayload{Dir: vec.Vec3{X: 0.3, Y: -1, Z: 0.3}})

	// Ждём появления снаряда в состоянии
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, size := readState(conn)
		if len(snap.Bodies) == 0 {
			continue
		}
		body := snap.Bodies[0]
		fmt.Printf("📥 Тик %d (%d байт): тел %d\n", snap.Tick, size, len(snap.Bodies))
		fmt.Printf("   Тело %d: %s, владелец %s, позиция (%.1f, %.1f, %.1f)\n",
			body.ID, body.Kind, body.Owner, body.Pos.X, body.Pos.Y, body.Pos.Z)
		if snap.TerrainChanged {
			fmt.Printf("   💥 Рельеф изменился: %d дельт\n", len(snap.Deltas))
		}
		return
	}
	fmt.Println("⚠️ Снаряд не появился в состоянии за 2 секунды")
}

// findPlayer ищет собственное тело в снапшоте
func findPlayer(snap *sim.Snapshot, playerID string) vec.Vec3 {
	for _, p := range snap.Players {
		if p.ID == playerID {
			return p.Pos
		}
	}
	log.Fatalf("❌ Игрок %s не найден в снапшоте тика %d", playerID, snap.Tick)
	return vec.Vec3{}
}

// logHexDump печатает hex дамп данных
func logHexDump(label string, data []byte) {
	fmt.Printf("   %s:\n%s", label, hex.Dump(data))
}
