// Package config loads the menuflow configuration: defaults, then an optional
// YAML file, then MENUFLOW_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MENUFLOW_"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Config holds all configuration for a menuflow process.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Flow      FlowConfig      `mapstructure:"flow"`
	Bot       BotConfig       `mapstructure:"bot"`
	Store     StoreConfig     `mapstructure:"store"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type FlowConfig struct {
	Path  string `mapstructure:"path"`
	Entry string `mapstructure:"entry"`
	Watch bool   `mapstructure:"watch"`
}

type BotConfig struct {
	// UserID is the bot's own chat id; its messages are never processed.
	UserID        string   `mapstructure:"user_id"`
	UsersIgnore   []string `mapstructure:"users_ignore"`
	MaxInputBytes int      `mapstructure:"max_input_bytes"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	Path   string      `mapstructure:"path"`
	Redis  RedisConfig `mapstructure:"redis"`

	// EncryptionKey is a base64 AES-256 key. When set, variable values are
	// encrypted at rest.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`

	// PIIPatterns mask matching variable names in inspection commands.
	PIIPatterns []string `mapstructure:"pii_patterns"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type EngineConfig struct {
	MaxTransitions   int           `mapstructure:"max_transitions"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`
	// RateLimit is the outbound HTTP request rate per second; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Flow: FlowConfig{Path: "flow.yaml", Watch: true},
		Bot:  BotConfig{MaxInputBytes: 4096},
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   ".menuflow/sessions",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "menuflow:", LockTTL: 30 * time.Second},
		},
		Engine: EngineConfig{
			MaxTransitions:   100,
			HTTPTimeout:      10 * time.Second,
			MaxResponseBytes: 1 << 20,
			RateBurst:        1,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{ServiceName: "menuflow", SampleRatio: 1.0, Insecure: true},
		Metrics:   MetricsConfig{Enabled: true},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Decode(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges a YAML document into cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Flow.Path = getEnv("FLOW_PATH", c.Flow.Path)
	c.Flow.Entry = getEnv("FLOW_ENTRY", c.Flow.Entry)
	c.Flow.Watch = getBool("FLOW_WATCH", c.Flow.Watch)

	c.Bot.UserID = getEnv("BOT_USER_ID", c.Bot.UserID)
	c.Bot.UsersIgnore = getStringSlice("USERS_IGNORE", c.Bot.UsersIgnore)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.EncryptionKey = getEnv("ENCRYPTION_KEY", c.Store.EncryptionKey)
	c.Store.Redis.Addr = getEnv("REDIS_ADDR", c.Store.Redis.Addr)
	c.Store.Redis.Password = getEnv("REDIS_PASSWORD", c.Store.Redis.Password)
	c.Store.Redis.DB = getInt("REDIS_DB", c.Store.Redis.DB)
	c.Store.Redis.TTL = getDuration("REDIS_TTL", c.Store.Redis.TTL)

	c.Engine.MaxTransitions = getInt("MAX_TRANSITIONS", c.Engine.MaxTransitions)
	c.Engine.HTTPTimeout = getDuration("HTTP_TIMEOUT", c.Engine.HTTPTimeout)
	c.Engine.RateLimit = getFloat("RATE_LIMIT", c.Engine.RateLimit)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Telemetry.Enabled = getBool("OTEL_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.Endpoint = getEnv("OTEL_ENDPOINT", c.Telemetry.Endpoint)
	c.Metrics.Enabled = getBool("METRICS_ENABLED", c.Metrics.Enabled)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.Flow.Path == "" {
		errs = append(errs, errors.New("flow.path is required"))
	}
	if c.Engine.MaxTransitions <= 0 {
		errs = append(errs, errors.New("engine.max_transitions must be positive"))
	}
	if c.Engine.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("engine.http_timeout must be positive"))
	}
	if c.Engine.RateLimit < 0 {
		errs = append(errs, errors.New("engine.rate_limit must not be negative"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sample_ratio must be within [0, 1]"))
	}
	if c.Store.EncryptionKey != "" {
		if _, _, err := c.Store.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (s StoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(envPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(envPrefix + key); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultVal
}
