package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Engine       EngineConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// Lock backends for the per-ticket critical section.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// EngineConfig tunes the routing and lifecycle engine.
type EngineConfig struct {
	DebounceSeconds               int
	CustomerCap                   int
	FixAssignmentsIntervalSeconds int
	LockBackend                   string
	LockTTLSeconds                int
	PriorityTablePath             string
	PublishEvents                 bool
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-routing"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Engine: EngineConfig{
			DebounceSeconds:               getEnvAsInt("ENGINE_DEBOUNCE_SECONDS", 60),
			CustomerCap:                   getEnvAsInt("ENGINE_CUSTOMER_CAP", 5),
			FixAssignmentsIntervalSeconds: getEnvAsInt("ENGINE_FIX_ASSIGNMENTS_INTERVAL_SECONDS", 0),
			LockBackend:                   strings.ToLower(getEnv("ENGINE_LOCK_BACKEND", LockBackendMemory)),
			LockTTLSeconds:                getEnvAsInt("ENGINE_LOCK_TTL_SECONDS", 10),
			PriorityTablePath:             os.Getenv("ENGINE_PRIORITY_TABLE"),
			PublishEvents:                 getEnvAsBool("ENGINE_PUBLISH_EVENTS", false),
		},
	}

	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e EngineConfig) validate() error {
	if e.DebounceSeconds < 0 {
		return fmt.Errorf("invalid ENGINE_DEBOUNCE_SECONDS: %d", e.DebounceSeconds)
	}
	if e.CustomerCap <= 0 {
		return fmt.Errorf("invalid ENGINE_CUSTOMER_CAP: %d", e.CustomerCap)
	}
	if e.FixAssignmentsIntervalSeconds < 0 {
		return fmt.Errorf("invalid ENGINE_FIX_ASSIGNMENTS_INTERVAL_SECONDS: %d", e.FixAssignmentsIntervalSeconds)
	}
	switch e.LockBackend {
	case LockBackendMemory, LockBackendRedis:
	default:
		return fmt.Errorf("invalid ENGINE_LOCK_BACKEND: %q", e.LockBackend)
	}
	return nil
}

// DebounceWindow returns the reply debounce window.
func (e EngineConfig) DebounceWindow() time.Duration {
	return time.Duration(e.DebounceSeconds) * time.Second
}

// FixAssignmentsInterval returns the sweep interval; zero disables it.
func (e EngineConfig) FixAssignmentsInterval() time.Duration {
	return time.Duration(e.FixAssignmentsIntervalSeconds) * time.Second
}

// LockTTL returns the distributed lock expiry.
func (e EngineConfig) LockTTL() time.Duration {
	return time.Duration(e.LockTTLSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
