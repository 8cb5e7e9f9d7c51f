package common

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scratch  ScratchConfig  `yaml:"scratch"`
	Legacy   LegacyConfig   `yaml:"legacy"`
	Queue    QueueConfig    `yaml:"queue"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds transport configuration
type ServerConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	GRPCAddr       string `yaml:"grpc_addr"` // empty disables the gRPC health listener
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// ScratchConfig holds the location of transient uploaded copies
type ScratchConfig struct {
	Dir string `yaml:"dir"`
}

// LegacyConfig holds the external .doc decoder configuration
type LegacyConfig struct {
	Decoder string        `yaml:"decoder"` // binary name or absolute path
	Args    []string      `yaml:"args"`    // fixed args placed before the file path
	Timeout time.Duration `yaml:"timeout"`
}

// QueueConfig sizes the extraction worker pool
type QueueConfig struct {
	Workers int `yaml:"workers"`
	Size    int `yaml:"size"`
}

// DatabaseConfig holds the job log configuration; an empty DSN disables it
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       ":5000",
			GRPCAddr:       ":50051",
			MaxUploadBytes: 32 << 20,
		},
		Scratch: ScratchConfig{
			Dir: filepath.Join(os.TempDir(), "doctext"),
		},
		Legacy: LegacyConfig{
			Decoder: "antiword",
			Timeout: 30 * time.Second,
		},
		Queue: QueueConfig{
			Workers: 4,
			Size:    64,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig layers defaults, then the optional YAML file at path, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.HTTPAddr = ":" + port
	}
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	if v, ok := os.LookupEnv("GRPC_ADDR"); ok {
		c.Server.GRPCAddr = v
	}
	c.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)

	c.Scratch.Dir = getEnv("SCRATCH_DIR", c.Scratch.Dir)

	c.Legacy.Decoder = getEnv("LEGACY_DECODER", c.Legacy.Decoder)
	if v := os.Getenv("LEGACY_DECODER_ARGS"); v != "" {
		c.Legacy.Args = strings.Fields(v)
	}
	c.Legacy.Timeout = getEnvAsDuration("DECODE_TIMEOUT", c.Legacy.Timeout)

	c.Queue.Workers = getEnvAsInt("WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)

	c.Database.DSN = getEnv("JOBS_DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("JOBS_DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("JOBS_DB_MIN_CONNS", c.Database.MinConns)
	c.Database.DialTimeout = getEnvAsDuration("JOBS_DB_DIAL_TIMEOUT", c.Database.DialTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.Scratch.Dir == "" {
		return NewAppError("CONFIG_ERROR", "SCRATCH_DIR is required", ErrInvalidInput)
	}
	if c.Legacy.Decoder == "" {
		return NewAppError("CONFIG_ERROR", "LEGACY_DECODER is required", ErrInvalidInput)
	}
	if c.Legacy.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "DECODE_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Queue.Workers <= 0 || c.Queue.Size <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS and QUEUE_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level (info when unknown).
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
