package network

import (
	"encoding/json"
	"math"

	"github.com/Jplayz2468/Voxel-Game/internal/physics"
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
)

// Типы сообщений клиент → сервер
const (
	MsgInput = "input"
	MsgLook  = "look"
	MsgJump  = "jump"
	MsgShoot = "shoot"
)

// Типы сообщений сервер → клиент
const (
	MsgWelcome = "welcome"
	MsgState   = "state"
	MsgError   = "error"
)

// ===== Конверты =====

// ClientMessage представляет входящее сообщение. Полезная нагрузка
// остаётся сырым JSON и разбирается по типу уже в обработчике.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage представляет исходящее сообщение
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EncodeServerMessage сериализует серверное сообщение в JSON
func EncodeServerMessage(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(ServerMessage{Type: msgType, Payload: payload})
}

// ===== Клиент → сервер =====

// InputPayload — зажатые клавиши движения
type InputPayload struct {
	W bool `json:"w"`
	A bool `json:"a"`
	S bool `json:"s"`
	D bool `json:"d"`
}

// Keys переводит нагрузку в клавиши физического тела
func (p *InputPayload) Keys() physics.MoveKeys {
	return physics.MoveKeys{W: p.W, A: p.A, S: p.S, D: p.D}
}

// LookPayload — ориентация камеры игрока в радианах
type LookPayload struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Sanitize отбрасывает NaN/Inf и зажимает тангаж в пределы камеры.
// Клиенту доверять нельзя: битое число расползается по физике и по
// JSON снапшотов для всех остальных.
func (p *LookPayload) Sanitize() {
	p.Yaw = sanitizeNumber(p.Yaw)
	p.Pitch = sanitizeNumber(p.Pitch)
	if p.Pitch > math.Pi/2 {
		p.Pitch = math.Pi / 2
	}
	if p.Pitch < -math.Pi/2 {
		p.Pitch = -math.Pi / 2
	}
}

// ShootPayload — направление выстрела в мировых координатах.
// Нормировать не обязательно: симуляция нормирует сама, а нулевой
// вектор отбрасывает.
type ShootPayload struct {
	Dir vec.Vec3 `json:"dir"`
}

// Sanitize отбрасывает NaN/Inf в компонентах направления
func (p *ShootPayload) Sanitize() {
	p.Dir.X = sanitizeNumber(p.Dir.X)
	p.Dir.Y = sanitizeNumber(p.Dir.Y)
	p.Dir.Z = sanitizeNumber(p.Dir.Z)
}

// ===== Сервер → клиент =====

// WelcomePayload — первое сообщение после подключения. Несёт полный
// слепок решётки: упакованный бит-массив сжимается zstd и попадает в
// JSON как base64. Дальше клиент живёт на дельтах из снапшотов.
type WelcomePayload struct {
	PlayerID   string   `json:"player_id"`
	Spawn      vec.Vec3 `json:"spawn"`
	Tick       uint64   `json:"tick"`
	WorldSize  int      `json:"world_size"`
	BaseHeight int      `json:"base_height"`
	TickRate   int      `json:"tick_rate"`
	GridZstd   []byte   `json:"grid_zstd"`
}

// ErrorPayload — ошибка, отправляемая клиенту перед разрывом или в
// ответ на непонятное сообщение
type ErrorPayload struct {
	Message string `json:"message"`
}

// sanitizeNumber заменяет NaN и ±Inf нулём
func sanitizeNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
