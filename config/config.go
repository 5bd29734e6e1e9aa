package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// RedisConfig selects the Redis instance used for session storage
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// KafkaConfig enables mutation event publishing when Brokers is non-empty
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// S3Config selects the archive destination; uploads are disabled without a bucket
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Profile      string
	Endpoint     string
	UsePathStyle bool
}

// Config is the client configuration resolved from the environment
type Config struct {
	APIURL         string
	PageSize       int
	RequestTimeout time.Duration
	SessionStore   string
	SessionPath    string
	Redis          RedisConfig
	Kafka          KafkaConfig
	S3             S3Config
	LogLevel       slog.Level
	LogFormat      string
}

// Load reads .env if present (non-fatal if missing) and resolves the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv resolves the configuration from the current environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIURL:         strings.TrimRight(GetEnvOrDefault("BLOG_API_URL", DefaultAPIURL), "/"),
		PageSize:       DefaultPageSize,
		RequestTimeout: DefaultRequestTimeout,
		SessionStore:   strings.ToLower(GetEnvOrDefault("BLOG_SESSION_STORE", SessionStoreFile)),
		SessionPath:    GetEnvOrDefault("BLOG_SESSION_PATH", DefaultSessionPath()),
		Redis: RedisConfig{
			Addr:     GetEnvOrDefault("REDIS_ADDR", DefaultRedisAddr),
			Password: os.Getenv("REDIS_PASS"),
			Key:      GetEnvOrDefault("REDIS_SESSION_KEY", DefaultRedisSessionKey),
		},
		Kafka: KafkaConfig{
			Topic: GetEnvOrDefault("KAFKA_TOPIC", DefaultKafkaTopic),
		},
		S3: S3Config{
			Bucket:       strings.TrimSpace(os.Getenv("S3_BUCKET")),
			Region:       strings.TrimSpace(os.Getenv("S3_REGION")),
			Profile:      strings.TrimSpace(os.Getenv("S3_PROFILE")),
			Endpoint:     strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			UsePathStyle: strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true"),
		},
		LogLevel:  slog.LevelInfo,
		LogFormat: strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "text")),
	}

	if v := os.Getenv("BLOG_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid BLOG_PAGE_SIZE %q: must be a positive integer", v)
		}
		cfg.PageSize = n
	}

	if v := os.Getenv("BLOG_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid BLOG_REQUEST_TIMEOUT %q: must be a positive duration", v)
		}
		cfg.RequestTimeout = d
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid REDIS_DB %q", v)
		}
		cfg.Redis.DB = n
	}

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	if prefix := strings.TrimSpace(os.Getenv("S3_PREFIX")); prefix != "" {
		cfg.S3.Prefix = strings.Trim(prefix, "/") + "/"
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := ParseLogLevel(v)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}

	switch cfg.SessionStore {
	case SessionStoreFile, SessionStoreRedis:
	default:
		return nil, fmt.Errorf("invalid BLOG_SESSION_STORE %q (valid: file, redis)", cfg.SessionStore)
	}

	return cfg, nil
}

// NewLogger builds the process logger from the configured level and format
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ParseLogLevel maps debug/info/warn/error to a slog level
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (valid: debug, info, warn, error)", raw)
	}
}

// DefaultSessionPath is where the file session store persists the signed-in user
func DefaultSessionPath() string {
	return filepath.Join(xdg.StateHome, "blog", "session.json")
}

// GetEnvOrDefault returns the value of an environment variable or a default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
