// Package config loads runtime settings from configs/config.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Log          LogConfig          `mapstructure:"log"`
	ChangeFeed   ChangeFeedConfig   `mapstructure:"changefeed"`
	Stock        StockConfig        `mapstructure:"stock"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig enables lifecycle event publishing when Brokers is non-empty
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ChangeFeedConfig struct {
	Backend string `mapstructure:"backend"` // local | redis
	Channel string `mapstructure:"channel"`
}

type StockConfig struct {
	Backend string `mapstructure:"backend"` // sql | redis
}

type SubscriptionConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

const (
	BackendLocal = "local"
	BackendRedis = "redis"
	BackendSQL   = "sql"
)

const devJWTSecret = "default_super_secret_key"

// Load reads the optional config file, applies env overrides and validates
// the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// comma separated lists from the environment
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if cfg.JWT.Secret == "" && cfg.Server.Mode != "release" {
		cfg.JWT.Secret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.topic", "order-events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("changefeed.backend", BackendLocal)
	v.SetDefault("changefeed.channel", "orders:changed")
	v.SetDefault("stock.backend", BackendSQL)
	v.SetDefault("subscription.debounce", 300*time.Millisecond)
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	_ = v.BindEnv("server.addr", "HTTP_ADDR")
	_ = v.BindEnv("server.mode", "GIN_MODE")
	_ = v.BindEnv("server.cors_origins", "CORS_ORIGINS")

	// Database
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.dbname", "DB_NAME")
	_ = v.BindEnv("database.sslmode", "DB_SSLMODE")

	// Redis
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	// Kafka
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.topic", "KAFKA_TOPIC")

	_ = v.BindEnv("jwt.secret", "JWT_SECRET")

	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")

	_ = v.BindEnv("changefeed.backend", "CHANGEFEED_BACKEND")
	_ = v.BindEnv("stock.backend", "STOCK_BACKEND")
	_ = v.BindEnv("subscription.debounce", "SUBSCRIPTION_DEBOUNCE")
}

// Validate checks the settings that cannot fall back to a default
func (c *Config) Validate() error {
	if c.Server.Mode == "release" && c.JWT.Secret == "" {
		return errors.New("invalid jwt.secret: JWT_SECRET is required in release mode")
	}
	switch c.ChangeFeed.Backend {
	case BackendLocal, BackendRedis:
	default:
		return fmt.Errorf("invalid changefeed.backend: %q (want local or redis)", c.ChangeFeed.Backend)
	}
	switch c.Stock.Backend {
	case BackendSQL, BackendRedis:
	default:
		return fmt.Errorf("invalid stock.backend: %q (want sql or redis)", c.Stock.Backend)
	}
	if c.Subscription.Debounce <= 0 {
		return fmt.Errorf("invalid subscription.debounce: %s", c.Subscription.Debounce)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("invalid kafka.topic: required when brokers are set")
	}
	return nil
}

// NeedsRedis reports whether any backend is configured to use redis
func (c *Config) NeedsRedis() bool {
	return c.ChangeFeed.Backend == BackendRedis || c.Stock.Backend == BackendRedis
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
