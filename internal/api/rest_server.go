package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Jplayz2468/Voxel-Game/internal/middleware"
	"github.com/Jplayz2468/Voxel-Game/internal/sim"
	"github.com/Jplayz2468/Voxel-Game/internal/world"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Сколько ждём ответа симуляции на запросы состояния мира
const terrainQueryWait = 2 * time.Second

// ClientCounter сообщает число активных подключений. Реализуется
// сетевым шлюзом; nil допустим — тогда блок network в статусе опускается.
type ClientCounter interface {
	ClientCount() int
}

// RestServer представляет служебный REST API игрового сервера
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	sim        *sim.SimulationWorld
	clients    ClientCounter
	generator  string
	staticDir  string
	origin     string
	metrics    *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        string                           // адрес для запуска сервера
	Sim         *sim.SimulationWorld             // симуляция мира
	Clients     ClientCounter                    // активные подключения (может быть nil)
	Generator   string                           // имя генератора мира
	StaticDir   string                           // каталог клиента; пусто — не раздаём
	AllowOrigin string                           // CORS-источник; пусто — "*"
	HTTPMetrics *middleware.PrometheusMiddleware // nil — без HTTP-метрик и /metrics
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.AllowOrigin == "" {
		config.AllowOrigin = "*"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("rest_api"))

	if config.HTTPMetrics != nil {
		router.Use(config.HTTPMetrics.Handler())
		config.HTTPMetrics.RegisterMetricsEndpoint(router)
	}

	server := &RestServer{
		router:    router,
		sim:       config.Sim,
		clients:   config.Clients,
		generator: config.Generator,
		staticDir: config.StaticDir,
		origin:    config.AllowOrigin,
		metrics:   NewServerMetrics(),
	}

	// Настраиваем маршруты
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	origin := rs.origin
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Группа API
	api := rs.router.Group("/api")
	{
		api.GET("/status", rs.handleStatus)
		api.GET("/world", rs.handleWorld)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)

	// Статический клиент
	if rs.staticDir != "" {
		rs.router.Static("/client", rs.staticDir)
		rs.router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/client/")
		})
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleStatus возвращает статистику процесса и сводку симуляции
func (rs *RestServer) handleStatus(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	rssMB, _ := rs.metrics.GetRSSMB()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	snap := rs.sim.Snapshot()

	status := map[string]interface{}{
		"server": map[string]interface{}{
			"name":        "Voxel Game Server",
			"uptime":      rs.metrics.GetUptime(),
			"go_version":  runtime.Version(),
			"goroutines":  runtime.NumGoroutine(),
			"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
			"rss_mb":      fmt.Sprintf("%.2f", rssMB),
			"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
			"server_time": time.Now().Unix(),
		},
		"world": map[string]interface{}{
			"tick":        snap.Tick,
			"time":        snap.Time,
			"players":     len(snap.Players),
			"bodies":      len(snap.Bodies),
			"solid_cells": snap.SolidCells,
		},
		"memory_details": rs.metrics.GetDetailedMemoryStats(),
	}

	if rs.clients != nil {
		status["network"] = map[string]interface{}{
			"connections": rs.clients.ClientCount(),
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    status,
	})
}

// handleWorld возвращает параметры мира. Сводка рельефа запрашивается
// у горутины симуляции, поэтому ответ согласован с границей тика.
func (rs *RestServer) handleWorld(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), terrainQueryWait)
	defer cancel()

	info, err := rs.sim.TerrainInfo(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Симуляция не отвечает: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Параметры мира",
		Data: map[string]interface{}{
			"size":        world.Size,
			"base_height": world.BaseHeight,
			"generator":   rs.generator,
			"solid_cells": info.SolidCells,
			"column_height": map[string]interface{}{
				"min": info.MinHeight,
				"max": info.MaxHeight,
			},
		},
	})
}

// handleHealth обрабатывает health check
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Handler возвращает корневой http.Handler сервера (для тестов)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокируется до его остановки
func (rs *RestServer) Start() error {
	err := rs.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop останавливает сервер, дожидаясь завершения активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.httpServer.Shutdown(ctx)
}
