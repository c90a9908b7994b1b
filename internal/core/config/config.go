package config

import (
	"time"

	redisclient "github.com/vietddude/retryguard/internal/infra/redis"
	"github.com/vietddude/retryguard/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Logging  LoggingConfig      `yaml:"logging"`
	Rules    RulesConfig        `yaml:"rules"`
	Worker   WorkerConfig       `yaml:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RulesConfig selects where the rule document lives and how often it is
// checked for a new version.
type RulesConfig struct {
	Key             string        `yaml:"key"`              // Redis key, used when File is empty
	File            string        `yaml:"file"`             // local YAML document
	CheckInterval   time.Duration `yaml:"check_interval"`   // version check period
	RefreshSchedule string        `yaml:"refresh_schedule"` // cron spec for forced reloads, empty = off
}

// WorkerConfig identifies this process in failure snapshots.
type WorkerConfig struct {
	ID string `yaml:"id"`
}
