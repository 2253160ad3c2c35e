package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/Jplayz2468/Voxel-Game/internal/eventbus"
	"github.com/Jplayz2468/Voxel-Game/internal/sim"
)

// Консольный хвост событий мира: подключается к JetStream стриму сервера
// и печатает конверты в читаемом виде. Работает только с драйвером
// eventbus.driver: jetstream.

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	defaultStream  = "WORLD_EVENTS"
	timeFormat     = "2006-01-02T15:04:05Z"
	idleTimeout    = 2 * time.Second
)

func main() {
	var (
		natsURL    = flag.String("url", defaultNATSURL, "NATS server URL")
		stream     = flag.String("stream", defaultStream, "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated, e.g. world.terrain_destroyed)")
		since      = flag.String("since", "1h", "Time duration since now (e.g. 1h, 30m) or RFC3339 time")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
	)
	flag.Parse()

	start, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Неверное значение -since: %v", err)
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к NATS: %v", err)
	}
	defer nc.Drain()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("❌ JetStream недоступен: %v", err)
	}

	// Эфемерный подписчик без подтверждений: инструмент только читает
	sub, err := js.SubscribeSync("world.*",
		nats.BindStream(*stream),
		nats.StartTime(start),
		nats.AckNone(),
	)
	if err != nil {
		log.Fatalf("❌ Подписка на стрим %s: %v", *stream, err)
	}
	defer sub.Unsubscribe()

	filter := newTypeFilter(parseStringList(*eventTypes))

	switch *command {
	case "tail":
		tailEvents(sub, filter, *limit, *follow)
	case "stats":
		showStats(sub, filter)
	case "types":
		showTypes(sub)
	default:
		fmt.Printf("❌ Неизвестная команда: %s\n", *command)
		fmt.Println("Доступные команды: tail, stats, types")
		os.Exit(1)
	}
}

type typeFilter map[string]struct{}

func newTypeFilter(types []string) typeFilter {
	if len(types) == 0 {
		return nil
	}
	f := make(typeFilter, len(types))
	for _, t := range types {
		f[t] = struct{}{}
	}
	return f
}

// allows: nil-фильтр пропускает всё
func (f typeFilter) allows(eventType string) bool {
	if f == nil {
		return true
	}
	_, ok := f[eventType]
	return ok
}

// nextEnvelope читает и декодирует следующий конверт; ok=false — поток иссяк
func nextEnvelope(sub *nats.Subscription, wait time.Duration) (*eventbus.Envelope, bool) {
	msg, err := sub.NextMsg(wait)
	if err != nil {
		return nil, false
	}

	var ev eventbus.Envelope
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Printf("⚠️ Битый конверт в %s: %v", msg.Subject, err)
		return nil, true
	}
	return &ev, true
}

// tailEvents выводит события в реальном времени
func tailEvents(sub *nats.Subscription, filter typeFilter, limit int, follow bool) {
	fmt.Printf("🎬 Хвост событий (limit: %d, follow: %v)\n", limit, follow)

	wait := idleTimeout
	if follow {
		wait = time.Hour
	}

	count := 0
	for count < limit || follow {
		ev, ok := nextEnvelope(sub, wait)
		if !ok {
			break
		}
		if ev == nil || !filter.allows(ev.EventType) {
			continue
		}

		printEvent(ev)
		count++
	}

	fmt.Printf("\n📊 Всего событий: %d\n", count)
}

// showStats считает события по типам с момента -since
func showStats(sub *nats.Subscription, filter typeFilter) {
	fmt.Println("📊 Статистика событий")

	counts := make(map[string]int)
	total := 0
	for {
		ev, ok := nextEnvelope(sub, idleTimeout)
		if !ok {
			break
		}
		if ev == nil || !filter.allows(ev.EventType) {
			continue
		}
		counts[ev.EventType]++
		total++
	}

	fmt.Printf("Всего событий: %d\n\nПо типам:\n", total)
	for _, eventType := range sortedKeys(counts) {
		fmt.Printf("  %s: %d\n", eventType, counts[eventType])
	}
}

type typeInfo struct {
	count       int
	first, last time.Time
}

// showTypes выводит встреченные типы событий с границами по времени
func showTypes(sub *nats.Subscription) {
	fmt.Println("📋 Типы событий в стриме")

	infos := make(map[string]*typeInfo)
	for {
		ev, ok := nextEnvelope(sub, idleTimeout)
		if !ok {
			break
		}
		if ev == nil {
			continue
		}

		info := infos[ev.EventType]
		if info == nil {
			info = &typeInfo{first: ev.Timestamp, last: ev.Timestamp}
			infos[ev.EventType] = info
		}
		info.count++
		if ev.Timestamp.Before(info.first) {
			info.first = ev.Timestamp
		}
		if ev.Timestamp.After(info.last) {
			info.last = ev.Timestamp
		}
	}

	for _, eventType := range sortedTypeKeys(infos) {
		info := infos[eventType]
		fmt.Printf("Тип: %s\n", eventType)
		fmt.Printf("  Количество: %d\n", info.count)
		fmt.Printf("  Первое: %s\n", info.first.Format(timeFormat))
		fmt.Printf("  Последнее: %s\n", info.last.Format(timeFormat))
		fmt.Println()
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	timestamp := ev.Timestamp.Local().Format("15:04:05")
	fmt.Printf("[%s] %s [%s] prio=%d %s\n",
		timestamp, ev.Source, ev.EventType, ev.Priority, ev.ID)

	// Детали в зависимости от типа события
	switch ev.EventType {
	case sim.EventPlayerJoined, sim.EventPlayerLeft:
		var p sim.PlayerEventPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Игрок: %s (%.1f, %.1f, %.1f), ячеек %d\n",
				p.PlayerID, p.Pos.X, p.Pos.Y, p.Pos.Z, p.CellCount)
		}
	case sim.EventProjectileFired:
		var p sim.ProjectileFiredPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Тело %d от %s из (%.1f, %.1f, %.1f)\n",
				p.BodyID, p.ThrowerID, p.Origin.X, p.Origin.Y, p.Origin.Z)
		}
	case sim.EventTerrainDestroyed:
		var p sim.TerrainDestroyedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Ячейка (%d,%d,%d), скорость %.1f, обломков %d\n",
				p.Cell.X, p.Cell.Y, p.Cell.Z, p.ImpactSpeed, p.DebrisCount)
		}
	case sim.EventBodySettled:
		var p sim.BodySettledPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Тело %d (%s) → ячейка (%d,%d,%d)\n",
				p.BodyID, p.Kind, p.Cell.X, p.Cell.Y, p.Cell.Z)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTypeKeys(m map[string]*typeInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
