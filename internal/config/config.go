package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	AutoMigrate     bool
	Seed            bool
}

type AuthConfig struct {
	AccessSecret string
}

type LedgerConfig struct {
	LockTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type RedisConfig struct {
	Addr           string
	DB             int
	IdempotencyTTL time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Ledger      LedgerConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 3001)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_SEED", false)
	v.SetDefault("LEDGER_LOCK_TIMEOUT", "5s")
	v.SetDefault("LEDGER_MAX_RETRIES", 3)
	v.SetDefault("LEDGER_RETRY_BASE_DELAY", "50ms")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host:               v.GetString("HTTP_HOST"),
			Port:               v.GetInt("HTTP_PORT"),
			CORSAllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
			Seed:            v.GetBool("DB_SEED"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Ledger: LedgerConfig{
			LockTimeout:    v.GetDuration("LEDGER_LOCK_TIMEOUT"),
			MaxRetries:     v.GetInt("LEDGER_MAX_RETRIES"),
			RetryBaseDelay: v.GetDuration("LEDGER_RETRY_BASE_DELAY"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("REDIS_ADDR"),
			DB:             v.GetInt("REDIS_DB"),
			IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if _, err := time.ParseDuration(cfg.DB.ConnMaxLifetime); err != nil {
		return fmt.Errorf("DB_CONN_MAX_LIFETIME: %w", err)
	}
	if cfg.Ledger.LockTimeout <= 0 {
		return fmt.Errorf("LEDGER_LOCK_TIMEOUT must be positive")
	}
	if cfg.Ledger.MaxRetries < 0 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must not be negative")
	}
	if cfg.Ledger.RetryBaseDelay <= 0 {
		return fmt.Errorf("LEDGER_RETRY_BASE_DELAY must be positive")
	}
	if cfg.Redis.Addr != "" && cfg.Redis.IdempotencyTTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive")
	}
	if cfg.RateLimit.RPS < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
