package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	DB        DatabaseConfig
	Store     StoreConfig
	Dispatch  DispatchConfig
	Push      PushConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig

	// PolicyPath optionally points at a YAML classifier and channel policy.
	PolicyPath string
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host string
	Port int
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver      string
	Path        string
	PostgresDSN string
}

type StoreConfig struct {
	MaxAttempts    int
	RetryBackoff   time.Duration
	PageSize       int
	MaxDescription int
}

type DispatchConfig struct {
	Timeout           time.Duration
	BroadcastRadiusKM float64
}

const (
	PushNone    = "none"
	PushWebhook = "webhook"
	PushRedis   = "redis"
)

type PushConfig struct {
	Driver        string
	WebhookURL    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

type RateLimitConfig struct {
	RPS float64
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		DB: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", DriverSQLite),
			Path:        getEnv("DB_PATH", "./data/accident-alerts.db"),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
		},
		Store: StoreConfig{
			MaxAttempts:    getEnvInt("STORE_MAX_ATTEMPTS", 3),
			RetryBackoff:   getEnvDuration("STORE_RETRY_BACKOFF", 100*time.Millisecond),
			PageSize:       getEnvInt("STORE_PAGE_SIZE", 50),
			MaxDescription: getEnvInt("REPORT_MAX_DESCRIPTION", 2000),
		},
		Dispatch: DispatchConfig{
			Timeout:           getEnvDuration("DISPATCH_TIMEOUT", 5*time.Second),
			BroadcastRadiusKM: getEnvFloat("BROADCAST_RADIUS_KM", 1.0),
		},
		Push: PushConfig{
			Driver:        getEnv("PUSH_DRIVER", PushNone),
			WebhookURL:    getEnv("PUSH_WEBHOOK_URL", ""),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisKey:      getEnv("PUSH_REDIS_KEY", "alerts:push"),
		},
		RateLimit: RateLimitConfig{
			RPS: getEnvFloat("RATE_LIMIT_RPS", 5),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		PolicyPath: getEnv("POLICY_PATH", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
	}

	if c.Store.MaxAttempts < 1 || c.Store.MaxAttempts > 10 {
		return fmt.Errorf("store max attempts must be between 1 and 10")
	}
	if c.Store.PageSize < 1 {
		return fmt.Errorf("store page size must be positive")
	}
	if c.Store.MaxDescription < 1 {
		return fmt.Errorf("report max description must be positive")
	}

	if c.Dispatch.Timeout <= 0 {
		return fmt.Errorf("dispatch timeout must be positive")
	}
	if c.Dispatch.BroadcastRadiusKM <= 0 {
		return fmt.Errorf("broadcast radius must be positive")
	}

	switch c.Push.Driver {
	case PushNone:
	case PushWebhook:
		if c.Push.WebhookURL == "" {
			return fmt.Errorf("PUSH_WEBHOOK_URL is required for the webhook push driver")
		}
	case PushRedis:
		if c.Push.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis push driver")
		}
	default:
		return fmt.Errorf("invalid push driver: %s", c.Push.Driver)
	}

	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
