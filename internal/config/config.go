package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Generator GeneratorConfig `yaml:"generator"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WorldConfig struct {
	ChunkSize       int   `yaml:"chunk_size"`
	DiagonalBorders *bool `yaml:"diagonal_borders"`
	TickIntervalMs  int   `yaml:"tick_interval_ms"`
	GenerateRadius  int   `yaml:"generate_radius"`
	Workers         int   `yaml:"workers"` // 0 - по числу CPU
}

type GeneratorConfig struct {
	Seed          int64   `yaml:"seed"`
	Scale         float64 `yaml:"scale"`
	Amplitude     float64 `yaml:"amplitude"`
	BaseHeight    int     `yaml:"base_height"`
	SeaLevel      int     `yaml:"sea_level"`
	DirtDepth     int     `yaml:"dirt_depth"`
	CaveScale     float64 `yaml:"cave_scale"`
	CaveThreshold float64 `yaml:"cave_threshold"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто - шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type CacheConfig struct {
	RedisURL      string `yaml:"redis_url"` // Пусто - кеш мешей в памяти
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	MemoryMB      int    `yaml:"memory_mb"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
}

type ServerConfig struct {
	APIPort int `yaml:"api_port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.World.ChunkSize <= 0 {
		c.World.ChunkSize = 16
	}
	if c.World.DiagonalBorders == nil {
		on := true
		c.World.DiagonalBorders = &on
	}
	if c.World.TickIntervalMs <= 0 {
		c.World.TickIntervalMs = 50
	}
	if c.World.GenerateRadius < 0 {
		c.World.GenerateRadius = 0
	}

	if c.Generator.Seed == 0 {
		c.Generator.Seed = 1337
	}
	if c.Generator.Scale == 0 {
		c.Generator.Scale = 0.03
	}
	if c.Generator.Amplitude == 0 {
		c.Generator.Amplitude = 12
	}
	if c.Generator.DirtDepth <= 0 {
		c.Generator.DirtDepth = 3
	}
	if c.Generator.CaveScale == 0 {
		c.Generator.CaveScale = 0.08
	}

	if c.EventBus.Stream == "" {
		c.EventBus.Stream = "VOXEL"
	}
	if c.EventBus.Retention <= 0 {
		c.EventBus.Retention = 24
	}
	if c.EventBus.Buffer <= 0 {
		c.EventBus.Buffer = 1024
	}

	if c.Cache.MemoryMB <= 0 {
		c.Cache.MemoryMB = 64
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 600
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "voxel-engine"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Diagonal возвращает флаг копирования ребер и углов гало
func (w *WorldConfig) Diagonal() bool {
	return w.DiagonalBorders == nil || *w.DiagonalBorders
}

// GetAPIPort возвращает порт отладочного API с поддержкой fallback значений
func (s *ServerConfig) GetAPIPort() int {
	return getPortWithEnvFallback(s.APIPort, "VOXEL_API_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать путь из ENV VOXEL_CONFIG;
// если и он не задан, возвращает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя заменить значением по умолчанию
func (c *Config) Validate() error {
	if c.World.ChunkSize < 0 {
		return fmt.Errorf("world.chunk_size must be positive, got %d", c.World.ChunkSize)
	}
	if c.Generator.CaveThreshold < 0 || c.Generator.CaveThreshold > 1 {
		return fmt.Errorf("generator.cave_threshold must be in [0,1], got %v", c.Generator.CaveThreshold)
	}
	return nil
}
