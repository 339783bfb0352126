package config

import (
	"time"

	"github.com/vietddude/jobpoll/internal/classify"
	redisclient "github.com/vietddude/jobpoll/internal/infra/redis"
	"github.com/vietddude/jobpoll/internal/infra/storage/postgres"
	"github.com/vietddude/jobpoll/internal/infra/transport"
	"github.com/vietddude/jobpoll/internal/scheduler"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Service    transport.Config   `yaml:"service"`
	Polling    scheduler.Policy   `yaml:"polling"`
	Classifier classify.Config    `yaml:"classifier"`
	Storage    StorageConfig      `yaml:"storage"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// StorageConfig selects where job records are kept.
type StorageConfig struct {
	Driver    string        `yaml:"driver"`    // memory, redis, postgres
	Retention time.Duration `yaml:"retention"` // 0 = keep forever
}

// ServerConfig holds health server settings. A zero port disables the server.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
