package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jplayz2468/Voxel-Game/internal/api"
	"github.com/Jplayz2468/Voxel-Game/internal/config"
	"github.com/Jplayz2468/Voxel-Game/internal/eventbus"
	"github.com/Jplayz2468/Voxel-Game/internal/logging"
	"github.com/Jplayz2468/Voxel-Game/internal/middleware"
	"github.com/Jplayz2468/Voxel-Game/internal/network"
	"github.com/Jplayz2468/Voxel-Game/internal/observability"
	"github.com/Jplayz2468/Voxel-Game/internal/sim"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🎮 Запуск Voxel Game Server...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load("")
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}

	gameAddr := fmt.Sprintf(":%d", cfg.Server.GetGamePort())
	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	logging.Info("📡 Конфигурация сервера: игровой WebSocket=%s, REST API=%s", gameAddr, restAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === OBSERVABILITY ===
	if cfg.Observability.Enabled {
		shutdownTracing, err := observability.InitTelemetry(ctx, "voxel-game-server", cfg.Observability.OTLPEndpoint)
		if err != nil {
			logging.Warn("OpenTelemetry не инициализирован: %v", err)
		} else {
			defer shutdownTracing(context.Background())
		}
	}

	// === МИР ===
	generator := cfg.World.GetGenerator()
	logging.Debug("Генерация мира: %s, seed=%d...", generator, cfg.World.Seed)
	grid := world.NewVoxelGrid()
	switch generator {
	case "noise":
		world.NewNoiseGenerator(cfg.World.Seed, cfg.World.GetTreeCount()).Generate(grid)
	default:
		world.NewFlatGenerator(cfg.World.Seed).Generate(grid)
	}
	logging.Info("🌍 Мир сгенерирован (%s): %d³ ячеек, занято %d", generator, world.Size, grid.SolidCells())

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	var jetBus *eventbus.JetStreamBus
	switch cfg.EventBus.GetDriver() {
	case "jetstream":
		retention := time.Duration(cfg.EventBus.Retention) * time.Hour
		if retention <= 0 {
			retention = 24 * time.Hour
		}
		jetBus, err = eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.GetStream(), retention)
		if err != nil {
			logging.Error("❌ Ошибка подключения к NATS: %v", err)
			log.Fatalf("❌ Ошибка подключения к NATS: %v", err)
		}
		bus = jetBus
		logging.Info("📨 Шина событий: JetStream (%s, стрим %s)", cfg.EventBus.URL, cfg.EventBus.GetStream())
	default:
		bus = eventbus.NewMemoryBus(1024)
		logging.Info("📨 Шина событий: in-memory")
	}

	busExporter := eventbus.NewMetricsExporter(bus)
	busExporter.Start()
	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Слушатель событий не запущен: %v", err)
	}

	// === СИМУЛЯЦИЯ ===
	logging.Debug("Создание симуляции...")
	simWorld := sim.NewSimulationWorld(grid, &cfg.Physics, bus, sim.NewPrometheusObserver())
	go simWorld.Run(ctx)
	logging.Info("⚙️ Симуляция запущена: %d Гц", cfg.Physics.GetTickRate())

	// === ИГРОВОЙ ШЛЮЗ ===
	logging.Debug("Создание игрового шлюза...")
	gateway, err := network.NewGateway(simWorld, &cfg.Physics, network.NewGatewayMetrics())
	if err != nil {
		logging.Error("❌ Ошибка создания игрового шлюза: %v", err)
		log.Fatalf("❌ Ошибка создания игрового шлюза: %v", err)
	}
	go gateway.Run(ctx)

	gameMux := http.NewServeMux()
	gameMux.HandleFunc("/ws", gateway.HandleConnection)
	gameServer := &http.Server{
		Addr:              gameAddr,
		Handler:           gameMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := gameServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("❌ Игровой сервер: %v", err)
		}
	}()

	// === REST API ===
	logging.Debug("Запуск REST API сервера...")
	restServer := api.NewRestServer(api.Config{
		Port:        restAddr,
		Sim:         simWorld,
		Clients:     gateway,
		Generator:   generator,
		StaticDir:   cfg.Server.GetStaticDir(),
		AllowOrigin: cfg.Server.AllowOrigin,
		HTTPMetrics: middleware.NewPrometheusMiddleware("rest_api"),
	})
	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ REST API: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	logging.Info("   🎮 Игровой WebSocket: ws://localhost%s/ws", gameAddr)
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", restAddr)
	logging.Info("💡 Примеры использования REST API:")
	logging.Info("   curl http://localhost%s/api/status", restAddr)
	logging.Info("   curl http://localhost%s/api/world", restAddr)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Ждем сигнала для завершения
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	// Сначала останавливаем симуляцию и шлюз: клиенты получают close,
	// горутины чтения/записи завершаются
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	logging.Debug("Остановка игрового сервера...")
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки игрового сервера: %v", err)
	}

	logging.Debug("Остановка REST API...")
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	busExporter.Stop()
	if jetBus != nil {
		jetBus.Close()
	}

	logging.Info("👋 Сервер успешно остановлен")
}
