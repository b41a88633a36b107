package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Matchmaking MatchmakingConfig `yaml:"matchmaking"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	MockServer  MockServerConfig  `yaml:"mockserver"`
}

type MatchmakingConfig struct {
	URL                  string        `yaml:"url"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	SearchTimeout        time.Duration `yaml:"search_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	ResyncOnReconnect    bool          `yaml:"resync_on_reconnect"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type MockServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	MatchAfter int    `yaml:"match_after"`
	DuelHost   string `yaml:"duel_host"`
	DuelPort   int    `yaml:"duel_port"`
}

func defaultConfig() *Config {
	return &Config{
		Matchmaking: MatchmakingConfig{
			URL:                  "ws://localhost:3001",
			ReconnectDelay:       2 * time.Second,
			MaxReconnectAttempts: 5,
			SearchTimeout:        30 * time.Second,
			PingInterval:         25 * time.Second,
			WriteTimeout:         10 * time.Second,
			HandshakeTimeout:     10 * time.Second,
			ResyncOnReconnect:    true,
		},
		Log: LogConfig{
			Level: "info",
		},
		MockServer: MockServerConfig{
			Host:       "127.0.0.1",
			Port:       3001,
			MatchAfter: 2,
			DuelHost:   "127.0.0.1",
			DuelPort:   7911,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

var ErrInvalid = errors.New("invalid config")

func (c *Config) Validate() error {
	m := c.Matchmaking
	u, err := url.Parse(m.URL)
	if err != nil {
		return fmt.Errorf("%w: matchmaking.url: %v", ErrInvalid, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: matchmaking.url scheme %q, want ws or wss", ErrInvalid, u.Scheme)
	}
	if m.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: matchmaking.reconnect_delay must be positive", ErrInvalid)
	}
	if m.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: matchmaking.max_reconnect_attempts must not be negative", ErrInvalid)
	}
	if m.SearchTimeout <= 0 {
		return fmt.Errorf("%w: matchmaking.search_timeout must be positive", ErrInvalid)
	}
	if m.PingInterval < 0 {
		return fmt.Errorf("%w: matchmaking.ping_interval must not be negative", ErrInvalid)
	}
	if m.WriteTimeout <= 0 || m.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: matchmaking write/handshake timeouts must be positive", ErrInvalid)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.MockServer.MatchAfter < 2 {
		return fmt.Errorf("%w: mockserver.match_after must be at least 2", ErrInvalid)
	}
	return nil
}

// ParseLevel maps a log level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, s)
}
