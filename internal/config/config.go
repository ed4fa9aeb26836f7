package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of every command.
type Config struct {
	AppPort             string
	APIPrefix           string
	DBDriver            string
	DatabaseDSN         string
	JWTSecret           string
	TokenTTL            time.Duration
	AllowAnonymousReads bool
	RabbitMQURL         string
	OrderEventsQueue    string
	RedisAddr           string
	CacheTTL            time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	LogLevel            string
	LogFormat           string
}

// Load reads the configuration from an optional .env file, an optional
// CONFIG_FILE and the environment, in increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("API_PREFIX", "")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:storefront.db?_busy_timeout=5000")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("ALLOW_ANONYMOUS_READS", true)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ORDER_EVENTS_QUEUE", "order_events")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("READ_TIMEOUT", "10s")
	v.SetDefault("WRITE_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		AppPort:             v.GetString("APP_PORT"),
		APIPrefix:           v.GetString("API_PREFIX"),
		DBDriver:            v.GetString("DB_DRIVER"),
		DatabaseDSN:         v.GetString("DATABASE_DSN"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		TokenTTL:            v.GetDuration("TOKEN_TTL"),
		AllowAnonymousReads: v.GetBool("ALLOW_ANONYMOUS_READS"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		OrderEventsQueue:    v.GetString("ORDER_EVENTS_QUEUE"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		CacheTTL:            v.GetDuration("CACHE_TTL"),
		ReadTimeout:         v.GetDuration("READ_TIMEOUT"),
		WriteTimeout:        v.GetDuration("WRITE_TIMEOUT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFormat:           v.GetString("LOG_FORMAT"),
	}
	return cfg, nil
}

// RequireJWTSecret fails when no signing secret is configured.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	return nil
}
