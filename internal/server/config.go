// Package server provides configuration helpers that define runtime defaults,
// validation, and environment loading for the relay.
package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// Config holds the server configuration settings including security controls
// and the chat engine's retention and throttling limits.
type Config struct {
	Port           string   `env:"SERVER_PORT"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxFrameSize   int64    `env:"MAX_FRAME_SIZE"`
	LogLevel       string   `env:"LOG_LEVEL"`
	LogFormat      string   `env:"LOG_FORMAT"`
	UsersFile      string   `env:"USERS_FILE"`

	HistoryCapacity      int           `env:"HISTORY_CAPACITY"`
	HistoryTTL           time.Duration `env:"HISTORY_TTL"`
	HistorySweepInterval time.Duration `env:"HISTORY_SWEEP_INTERVAL"`
	PrivateCapacity      int           `env:"PRIVATE_CAPACITY"`
	PrivateReplay        int           `env:"PRIVATE_REPLAY"`

	RateLimitMax           int           `env:"RATE_LIMIT_MAX"`
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW"`
	RateLimitSweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL"`

	HandshakeRPS   float64 `env:"HANDSHAKE_RPS"`
	HandshakeBurst int     `env:"HANDSHAKE_BURST"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxFrameSize:           8192,
		LogLevel:               "info",
		LogFormat:              "json",
		HistoryCapacity:        chat.DefaultHistoryCapacity,
		HistoryTTL:             chat.DefaultHistoryTTL,
		HistorySweepInterval:   time.Minute,
		PrivateCapacity:        chat.DefaultPrivateCapacity,
		PrivateReplay:          chat.DefaultPrivateReplay,
		RateLimitMax:           chat.DefaultRateLimitMax,
		RateLimitWindow:        chat.DefaultRateLimitWindow,
		RateLimitSweepInterval: 5 * time.Minute,
		HandshakeRPS:           2,
		HandshakeBurst:         10,
		ShutdownTimeout:        10 * time.Second,
	}
}

// sanitizeConfig replaces unset or out-of-range values with their defaults.
func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = def.HistoryTTL
	}
	if cfg.HistorySweepInterval <= 0 {
		cfg.HistorySweepInterval = def.HistorySweepInterval
	}
	if cfg.PrivateCapacity <= 0 {
		cfg.PrivateCapacity = def.PrivateCapacity
	}
	if cfg.PrivateReplay <= 0 {
		cfg.PrivateReplay = def.PrivateReplay
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = def.RateLimitMax
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.RateLimitSweepInterval <= 0 {
		cfg.RateLimitSweepInterval = def.RateLimitSweepInterval
	}
	if cfg.HandshakeRPS <= 0 {
		cfg.HandshakeRPS = def.HandshakeRPS
	}
	if cfg.HandshakeBurst <= 0 {
		cfg.HandshakeBurst = def.HandshakeBurst
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables. Unset
// variables keep their defaults.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

// Limits returns the chat engine limits carried by the configuration.
func (c Config) Limits() chat.Limits {
	return chat.Limits{
		HistoryCapacity: c.HistoryCapacity,
		HistoryTTL:      c.HistoryTTL,
		PrivateCapacity: c.PrivateCapacity,
		PrivateReplay:   c.PrivateReplay,
		RateLimitMax:    c.RateLimitMax,
		RateLimitWindow: c.RateLimitWindow,
	}
}
