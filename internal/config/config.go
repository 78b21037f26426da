package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	PresenceScopeAll   = "all"
	PresenceScopePeers = "peers"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Chat     ChatConfig     `yaml:"chat"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the message and user storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	Secret    string        `yaml:"secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	TicketTTL time.Duration `yaml:"ticket_ttl"`
}

// RealtimeConfig 描述实时通道（websocket / SSE）的行为。
type RealtimeConfig struct {
	RequireToken  bool    `yaml:"require_token"`
	PresenceScope string  `yaml:"presence_scope"`
	RateRPS       float64 `yaml:"rate_rps"`
	RateBurst     int     `yaml:"rate_burst"`
	SendBuffer    int     `yaml:"send_buffer"`
}

type ChatConfig struct {
	MaxFileSize  string `yaml:"max_file_size"`
	MaxFileBytes int    `yaml:"-"`
	// RequireConnection limits direct messages to pairs with an accepted request.
	RequireConnection bool `yaml:"require_connection"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{Driver: DriverMemory},
		Auth: AuthConfig{
			TokenTTL:  7 * 24 * time.Hour,
			TicketTTL: time.Minute,
		},
		Realtime: RealtimeConfig{
			RequireToken:  true,
			PresenceScope: PresenceScopeAll,
			RateRPS:       20,
			RateBurst:     40,
			SendBuffer:    256,
		},
		Chat:    ChatConfig{MaxFileSize: "10MB"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load 依次应用默认值、CONFIG_FILE 指定的 YAML 文件和环境变量。
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	loaders := []func(*Config) error{
		loadServerConfig,
		loadDatabaseConfig,
		loadAuthConfig,
		loadRealtimeConfig,
		loadChatConfig,
		loadObservabilityConfig,
	}
	for _, load := range loaders {
		if err := load(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if strings.Contains(port, " ") {
			return fmt.Errorf("invalid PORT value: %q", port)
		}
		if strings.Contains(port, ":") {
			// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
			cfg.Server.Addr = port
		} else {
			cfg.Server.Addr = ":" + port
		}
	}

	if origins := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	return nil
}

func loadDatabaseConfig(cfg *Config) error {
	cfg.Database.Driver = strings.ToLower(getEnvOrDefault("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.DSN = getEnvOrDefault("DB_DSN", cfg.Database.DSN)
	if cfg.Database.Driver == DriverSQLite && cfg.Database.DSN == "" {
		cfg.Database.DSN = "mentormatch.db"
	}
	return nil
}

func loadAuthConfig(cfg *Config) error {
	cfg.Auth.Secret = getEnvOrDefault("JWT_SECRET", cfg.Auth.Secret)

	tokenTTL, err := parseDurationEnv("JWT_TTL", cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	ticketTTL, err := parseDurationEnv("REALTIME_TICKET_TTL", cfg.Auth.TicketTTL)
	if err != nil {
		return err
	}
	cfg.Auth.TokenTTL = tokenTTL
	cfg.Auth.TicketTTL = ticketTTL
	return nil
}

func loadRealtimeConfig(cfg *Config) error {
	requireToken, err := parseBoolEnv("REALTIME_REQUIRE_TOKEN", cfg.Realtime.RequireToken)
	if err != nil {
		return err
	}
	cfg.Realtime.RequireToken = requireToken
	cfg.Realtime.PresenceScope = strings.ToLower(getEnvOrDefault("REALTIME_PRESENCE_SCOPE", cfg.Realtime.PresenceScope))

	if rps, err := parseOptionalFloatEnv("REALTIME_RATE_RPS"); err != nil {
		return err
	} else if rps != nil {
		cfg.Realtime.RateRPS = *rps
	}

	if burst, err := parseOptionalIntEnv("REALTIME_RATE_BURST"); err != nil {
		return err
	} else if burst != nil {
		cfg.Realtime.RateBurst = *burst
	}

	if buffer, err := parseOptionalIntEnv("REALTIME_SEND_BUFFER"); err != nil {
		return err
	} else if buffer != nil {
		cfg.Realtime.SendBuffer = *buffer
	}
	return nil
}

func loadChatConfig(cfg *Config) error {
	raw := getEnvOrDefault("CHAT_MAX_FILE_SIZE", cfg.Chat.MaxFileSize)
	size, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("invalid CHAT_MAX_FILE_SIZE value %q: %w", raw, err)
	}
	cfg.Chat.MaxFileSize = raw
	cfg.Chat.MaxFileBytes = int(size)

	requireConnection, err := parseBoolEnv("CHAT_REQUIRE_CONNECTION", cfg.Chat.RequireConnection)
	if err != nil {
		return err
	}
	cfg.Chat.RequireConnection = requireConnection
	return nil
}

func loadObservabilityConfig(cfg *Config) error {
	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)

	enabled, err := parseBoolEnv("METRICS_ENABLED", cfg.Metrics.Enabled)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = enabled
	return nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.TicketTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	switch c.Realtime.PresenceScope {
	case PresenceScopeAll, PresenceScopePeers:
	default:
		return fmt.Errorf("unsupported REALTIME_PRESENCE_SCOPE %q", c.Realtime.PresenceScope)
	}
	if c.Realtime.RateRPS < 0 || c.Realtime.RateBurst < 0 {
		return fmt.Errorf("realtime rate limits must not be negative")
	}
	if c.Realtime.SendBuffer < 1 {
		c.Realtime.SendBuffer = 1
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
