package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ServiceName    = "pos-backend"
	ServiceVersion = "0.1.0"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	AppPort  string `envconfig:"APP_PORT" default:"8080"`
	GRPCPort string `envconfig:"GRPC_PORT" default:"50051"`

	DatabaseURL       string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`

	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTTL  time.Duration `envconfig:"JWT_ACCESS_TTL" default:"15m"`
	JWTRefreshTTL time.Duration `envconfig:"JWT_REFRESH_TTL" default:"24h"`

	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	KafkaBrokers        []string `envconfig:"KAFKA_BROKERS"`
	KafkaSalesTopic     string   `envconfig:"KAFKA_SALES_TOPIC" default:"sales.recorded"`
	KafkaInventoryTopic string   `envconfig:"KAFKA_INVENTORY_TOPIC" default:"inventory.low_stock"`

	OtelEndpoint   string `envconfig:"OTEL_ENDPOINT"`
	OtelAuthHeader string `envconfig:"OTEL_AUTH_HEADER"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	LowStockThreshold int           `envconfig:"LOW_STOCK_THRESHOLD" default:"10"`
	SaleTimeout       time.Duration `envconfig:"SALE_TIMEOUT" default:"5s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.LowStockThreshold < 0 {
		return nil, fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative")
	}
	return &cfg, nil
}
