package config

import (
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	World         WorldConfig         `yaml:"world"`
	Physics       PhysicsConfig       `yaml:"physics"`
	EventBus      EventBusConfig      `yaml:"eventbus"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	GamePort    int    `yaml:"game_port"`
	RESTPort    int    `yaml:"rest_port"`
	StaticDir   string `yaml:"static_dir"`
	AllowOrigin string `yaml:"allow_origin"`
}

type WorldConfig struct {
	Seed      int64  `yaml:"seed"`
	Generator string `yaml:"generator"` // flat | noise
	TreeCount int    `yaml:"tree_count"`
}

type PhysicsConfig struct {
	TickRate        int     `yaml:"tick_rate"`
	ClampDT         *bool   `yaml:"clamp_dt"`
	MaxMovingBodies int     `yaml:"max_moving_bodies"`
	ShotsPerSecond  float64 `yaml:"shots_per_second"`
	ShotBurst       int     `yaml:"shot_burst"`
}

type EventBusConfig struct {
	Driver    string `yaml:"driver"` // memory | jetstream
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ObservabilityConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// GetGamePort возвращает порт игрового WebSocket сервера
func (s *ServerConfig) GetGamePort() int {
	return getPortWithEnvFallback(s.GamePort, "GAME_PORT", 8080)
}

// GetRESTPort возвращает порт REST API
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetStaticDir возвращает директорию статики клиента
func (s *ServerConfig) GetStaticDir() string {
	if s.StaticDir != "" {
		return s.StaticDir
	}
	return "static"
}

// GetGenerator возвращает выбранный генератор рельефа
func (w *WorldConfig) GetGenerator() string {
	if w.Generator != "" {
		return w.Generator
	}
	return "flat"
}

// GetTreeCount возвращает число деревьев для шумового генератора
func (w *WorldConfig) GetTreeCount() int {
	if w.TreeCount > 0 {
		return w.TreeCount
	}
	return 24
}

// GetTickRate возвращает частоту тиков симуляции (Гц)
func (p *PhysicsConfig) GetTickRate() int {
	if p.TickRate > 0 {
		return p.TickRate
	}
	return 50
}

// GetClampDT сообщает, ограничивать ли измеренный dt сверху.
// По умолчанию включено; clamp_dt: false воспроизводит поведение
// без ограничения (большой скачок dt при подвисании планировщика).
func (p *PhysicsConfig) GetClampDT() bool {
	if p.ClampDT == nil {
		return true
	}
	return *p.ClampDT
}

// GetMaxMovingBodies возвращает защитный предел числа свободных вокселей
func (p *PhysicsConfig) GetMaxMovingBodies() int {
	if p.MaxMovingBodies > 0 {
		return p.MaxMovingBodies
	}
	return 4096
}

// GetShotsPerSecond возвращает допустимую частоту выстрелов игрока
func (p *PhysicsConfig) GetShotsPerSecond() float64 {
	if p.ShotsPerSecond > 0 {
		return p.ShotsPerSecond
	}
	return 4
}

// GetShotBurst возвращает допустимый burst выстрелов
func (p *PhysicsConfig) GetShotBurst() int {
	if p.ShotBurst > 0 {
		return p.ShotBurst
	}
	return 2
}

// GetDriver возвращает драйвер шины событий
func (e *EventBusConfig) GetDriver() string {
	if e.Driver != "" {
		return e.Driver
	}
	return "memory"
}

// GetStream возвращает имя JetStream потока
func (e *EventBusConfig) GetStream() string {
	if e.Stream != "" {
		return e.Stream
	}
	return "WORLD_EVENTS"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает дефолты.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return &Config{}, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
