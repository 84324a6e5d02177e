// Package config loads sequencer settings from an optional YAML file, an
// optional .env file and SEQ_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "SEQ_"

type Config struct {
	Log       LogConfig      `yaml:"log"`
	Timeline  TimelineConfig `yaml:"timeline"`
	History   HistoryConfig  `yaml:"history"`
	Store     StoreConfig    `yaml:"store"`
	Workers   int            `yaml:"workers"`
	ShowStats bool           `yaml:"show_stats"`

	BuildVersion string `yaml:"-"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// TimelineConfig holds the defaults of new timelines.
type TimelineConfig struct {
	FPS         float64 `yaml:"fps"`
	Duration    int     `yaml:"duration"`
	TimeDisplay string  `yaml:"time_display"`
	TickBatch   bool    `yaml:"tick_batch"`
}

type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// StoreConfig selects and configures the blob store for saved timelines.
// Kind is one of file, sql, redis or minio.
type StoreConfig struct {
	Kind string `yaml:"kind"`
	Dir  string `yaml:"dir"`
	DSN  string `yaml:"dsn"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`

	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioSSL       bool   `yaml:"minio_ssl"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Timeline: TimelineConfig{
			FPS:         30,
			Duration:    300,
			TimeDisplay: "frames",
		},
		History: HistoryConfig{Limit: 200},
		Store: StoreConfig{
			Kind:        "file",
			Dir:         "timelines",
			DSN:         "sequencer.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "sequencer:",
			MinioBucket: "timelines",
		},
		Workers: runtime.NumCPU(),
	}
}

// Load builds the configuration. A missing YAML file is only an error when
// path was given explicitly; a missing .env file is never an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = GetEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = GetEnv("LOG_FILE", c.Log.File)

	c.Timeline.FPS = GetEnvFloat("FPS", c.Timeline.FPS)
	c.Timeline.Duration = GetEnvInt("DURATION", c.Timeline.Duration)
	c.Timeline.TimeDisplay = GetEnv("TIME_DISPLAY", c.Timeline.TimeDisplay)
	c.Timeline.TickBatch = GetEnvBool("TICK_BATCH", c.Timeline.TickBatch)
	c.History.Limit = GetEnvInt("HISTORY_LIMIT", c.History.Limit)

	c.Store.Kind = GetEnv("STORE", c.Store.Kind)
	c.Store.Dir = GetEnv("STORE_DIR", c.Store.Dir)
	c.Store.DSN = GetEnv("SQL_DSN", c.Store.DSN)
	c.Store.RedisAddr = GetEnv("REDIS_ADDR", c.Store.RedisAddr)
	c.Store.RedisPassword = GetEnv("REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = GetEnvInt("REDIS_DB", c.Store.RedisDB)
	c.Store.RedisPrefix = GetEnv("REDIS_PREFIX", c.Store.RedisPrefix)
	c.Store.MinioEndpoint = GetEnv("MINIO_ENDPOINT", c.Store.MinioEndpoint)
	c.Store.MinioAccessKey = GetEnv("MINIO_ACCESS_KEY", c.Store.MinioAccessKey)
	c.Store.MinioSecretKey = GetEnv("MINIO_SECRET_KEY", c.Store.MinioSecretKey)
	c.Store.MinioBucket = GetEnv("MINIO_BUCKET", c.Store.MinioBucket)
	c.Store.MinioSSL = GetEnvBool("MINIO_SSL", c.Store.MinioSSL)

	c.Workers = GetEnvInt("WORKERS", c.Workers)
	c.ShowStats = GetEnvBool("SHOW_STATS", c.ShowStats)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "file", "sql", "redis", "minio":
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

// GetEnv returns SEQ_<key>, or fallback when unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(EnvPrefix + key); s != "" {
		return s
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func GetEnvFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(GetEnv(key, ""), 64); err == nil {
		return f
	}
	return fallback
}

func GetEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(GetEnv(key, "")); err == nil {
		return b
	}
	return fallback
}
