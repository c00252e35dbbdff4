package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/creastat/chatstore"
)

// Config is the full service configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	HTTP      HTTPConfig      `yaml:"http"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Type          string `yaml:"type"` // "redis" or "memory"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPoolSize int    `yaml:"redis_pool_size"`
	Namespace     string `yaml:"namespace"`
}

// SessionConfig configures the session store and its sweeper.
type SessionConfig struct {
	Expiry        time.Duration `yaml:"expiry"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	SweepTimeout  time.Duration `yaml:"sweep_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

// AnalyticsConfig configures the analytics engine.
type AnalyticsConfig struct {
	EventTTL        time.Duration `yaml:"event_ttl"`
	SampleSize      int64         `yaml:"sample_size"`
	IngestRate      float64       `yaml:"ingest_rate"` // events per second, 0 disables limiting
	IngestBurst     int           `yaml:"ingest_burst"`
	PublishSchedule string        `yaml:"publish_schedule"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SupabaseConfig enables mirroring day reports to Supabase when URL is set.
type SupabaseConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Table  string `yaml:"table"`
}

// Enabled reports whether report publishing is configured.
func (c SupabaseConfig) Enabled() bool {
	return c.URL != ""
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Type:          "redis",
			RedisAddr:     "localhost:6379",
			RedisPoolSize: 10,
			Namespace:     "chatstore:",
		},
		Session: SessionConfig{
			Expiry:        24 * time.Hour,
			SweepSchedule: "@every 5m",
			SweepTimeout:  time.Minute,
			MaxRetries:    5,
		},
		Analytics: AnalyticsConfig{
			EventTTL:        7 * 24 * time.Hour,
			SampleSize:      1000,
			IngestRate:      200,
			IngestBurst:     400,
			PublishSchedule: "CRON_TZ=UTC 5 0 * * *",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file in the working directory and the environment, in
// increasing order of precedence. Variables already set in the environment
// are not overwritten by .env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", chatstore.ErrInvalidConfig, path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Type {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			problems = append(problems, "store.redis_addr is required for the redis store")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.type %q is not one of redis, memory", c.Store.Type))
	}
	if c.Session.Expiry <= 0 {
		problems = append(problems, "session.expiry must be positive")
	}
	if c.Analytics.EventTTL <= 0 {
		problems = append(problems, "analytics.event_ttl must be positive")
	}
	if c.Analytics.SampleSize <= 0 {
		problems = append(problems, "analytics.sample_size must be positive")
	}
	if c.Analytics.IngestRate < 0 {
		problems = append(problems, "analytics.ingest_rate must not be negative")
	}
	if c.HTTP.Addr == "" {
		problems = append(problems, "http.addr is required")
	}
	if c.Supabase.Enabled() && c.Supabase.APIKey == "" {
		problems = append(problems, "supabase.api_key is required when supabase.url is set")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", chatstore.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// NewLogger builds the zap logger described by the log section.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %w", chatstore.ErrInvalidConfig, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("CHATSTORE_STORE_TYPE", &cfg.Store.Type)
	str("CHATSTORE_REDIS_ADDR", &cfg.Store.RedisAddr)
	str("CHATSTORE_REDIS_PASSWORD", &cfg.Store.RedisPassword)
	num("CHATSTORE_REDIS_DB", &cfg.Store.RedisDB)
	str("CHATSTORE_NAMESPACE", &cfg.Store.Namespace)

	dur("CHATSTORE_SESSION_EXPIRY", &cfg.Session.Expiry)
	str("CHATSTORE_SWEEP_SCHEDULE", &cfg.Session.SweepSchedule)

	dur("CHATSTORE_EVENT_TTL", &cfg.Analytics.EventTTL)
	if v, ok := os.LookupEnv("CHATSTORE_SAMPLE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHATSTORE_SAMPLE_SIZE: %w", err))
		} else {
			cfg.Analytics.SampleSize = n
		}
	}

	str("CHATSTORE_HTTP_ADDR", &cfg.HTTP.Addr)
	if v, ok := os.LookupEnv("CHATSTORE_CORS_ORIGINS"); ok {
		for _, p := range strings.Split(v, ",") {
			if o := strings.TrimSpace(p); o != "" {
				cfg.HTTP.CORSOrigins = append(cfg.HTTP.CORSOrigins, o)
			}
		}
	}

	str("SUPABASE_URL", &cfg.Supabase.URL)
	str("SUPABASE_API_KEY", &cfg.Supabase.APIKey)

	str("CHATSTORE_LOG_LEVEL", &cfg.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", chatstore.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
