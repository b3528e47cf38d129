package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/domain"
	pkgconfig "github.com/utafrali/orderengine/pkg/config"
	"github.com/utafrali/orderengine/pkg/database"
	"github.com/utafrali/orderengine/pkg/logger"
)

// Config holds all configuration for the order engine.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ORDERENGINE_HTTP_PORT" envDefault:"8004"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"orders"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"orders_secret"`
	PostgresDB   string `env:"ORDERENGINE_DB_NAME" envDefault:"orders"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (rate cache, processed payment events)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers         []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup   string   `env:"ORDERENGINE_CONSUMER_GROUP" envDefault:"order-engine"`
	KafkaMaxRetries      int      `env:"KAFKA_MAX_RETRIES" envDefault:"3"`
	ProcessedEventTTLHrs int      `env:"PROCESSED_EVENT_TTL_HOURS" envDefault:"24"`

	// Payment service
	PaymentServiceURL     string `env:"PAYMENT_SERVICE_URL" envDefault:"http://localhost:8005"`
	PaymentTimeoutSeconds int    `env:"PAYMENT_TIMEOUT_SECONDS" envDefault:"10"`

	// Circuit breaker for the payment service
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Pricing
	BaseCurrency        string            `env:"BASE_CURRENCY" envDefault:"USD"`
	TaxRatePercent      decimal.Decimal   `env:"TAX_RATE_PERCENT" envDefault:"10"`
	ShippingRates       map[string]string `env:"SHIPPING_RATES" envDefault:"standard:10.00,express:25.00,overnight:45.00" envSeparator:"," envKeyValSeparator:":"`
	RateCacheTTLSeconds int               `env:"RATE_CACHE_TTL_SECONDS" envDefault:"300"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Per-client throttle on order placement; 0 disables it
	PlacementRateLimitRPS   float64 `env:"PLACEMENT_RATE_LIMIT_RPS" envDefault:"5"`
	PlacementRateLimitBurst int     `env:"PLACEMENT_RATE_LIMIT_BURST" envDefault:"10"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	shipping domain.ShippingTable
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load order engine config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var hundred = decimal.NewFromInt(100)

// validate checks configuration invariants and parses the shipping table.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.TaxRatePercent.IsNegative() || c.TaxRatePercent.GreaterThan(hundred) {
		return fmt.Errorf("TAX_RATE_PERCENT must be between 0 and 100, got %s", c.TaxRatePercent)
	}

	c.BaseCurrency = domain.NormalizeCurrency(c.BaseCurrency)
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("BASE_CURRENCY must be a 3-letter ISO code, got %q", c.BaseCurrency)
	}

	shipping, err := domain.ParseShippingTable(c.ShippingRates)
	if err != nil {
		return fmt.Errorf("invalid SHIPPING_RATES: %w", err)
	}
	c.shipping = shipping

	if c.RateCacheTTLSeconds < 0 {
		return fmt.Errorf("RATE_CACHE_TTL_SECONDS must not be negative, got %d", c.RateCacheTTLSeconds)
	}
	if c.KafkaMaxRetries < 0 {
		return fmt.Errorf("KAFKA_MAX_RETRIES must not be negative, got %d", c.KafkaMaxRetries)
	}
	if c.PlacementRateLimitRPS < 0 {
		return fmt.Errorf("PLACEMENT_RATE_LIMIT_RPS must not be negative, got %g", c.PlacementRateLimitRPS)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.PaymentServiceURL == "" {
		return fmt.Errorf("PAYMENT_SERVICE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.PaymentServiceURL); err != nil {
		return fmt.Errorf("invalid PAYMENT_SERVICE_URL %q: %w", c.PaymentServiceURL, err)
	}
	return nil
}

// ShippingTable returns the flat shipping rates parsed by Load.
func (c *Config) ShippingTable() domain.ShippingTable {
	return c.shipping
}

// RateCacheTTL returns how long a rate snapshot stays in Redis.
func (c *Config) RateCacheTTL() time.Duration {
	return time.Duration(c.RateCacheTTLSeconds) * time.Second
}

// ProcessedEventTTL returns how long payment event ids are remembered.
func (c *Config) ProcessedEventTTL() time.Duration {
	return time.Duration(c.ProcessedEventTTLHrs) * time.Hour
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	r := database.DefaultRedisConfig()
	r.Host = c.RedisHost
	r.Port = c.RedisPort
	r.Password = c.RedisPassword
	r.DB = c.RedisDB
	return r
}
