package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger drivers
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Archive  ArchiveConfig
	Auth     AuthConfig
	MPesa    MPesaConfig
	PayPal   PayPalConfig
	App      AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// LedgerConfig selects the storage backends for the transaction ledger
// and the idempotency key cache.
type LedgerConfig struct {
	Driver           string
	IdempotencyStore string
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// RedisConfig holds Redis connection configuration. Redis backs the
// distributed per-reference lock when enabled.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// KafkaConfig holds the status-change stream configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// ArchiveConfig holds S3 settings for raw callback payload archival
type ArchiveConfig struct {
	Enabled   bool
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Prefix    string
}

// AuthConfig holds bearer token settings for the payment API
type AuthConfig struct {
	JWTSecret string
}

// MPesaConfig holds the push-payment gateway configuration
type MPesaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	Passkey         string
	TransactionType string
	CallbackURL     string
	CallbackToken   string
	AllowedCIDRs    []string
	AccountRef      string
	Description     string
}

// PayPalConfig holds the order-capture gateway configuration
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	ReturnURL    string
	CancelURL    string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	InitiationTimeout  time.Duration
	GatewayHTTPTimeout time.Duration
	ApplyMaxRetries    int
	IdempotencyTTL     time.Duration
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level string // debug, info, warn, error
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	ledgerDriver := getEnv("LEDGER_DRIVER", DriverPostgres)

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "reconciler"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Ledger: LedgerConfig{
			Driver:           ledgerDriver,
			IdempotencyStore: getEnv("IDEMPOTENCY_STORE", defaultIdempotencyStore(ledgerDriver)),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "reconciler"),
			Timeout:  getEnvAsDuration("MONGO_TIMEOUT", "5s"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  getEnvAsDuration("REDIS_LOCK_TTL", "30s"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "payment-transactions"),
		},
		Archive: ArchiveConfig{
			Enabled:   getEnvAsBool("ARCHIVE_ENABLED", false),
			Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
			AccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
			Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
			Prefix:    getEnv("ARCHIVE_S3_PREFIX", "callbacks"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		MPesa: MPesaConfig{
			BaseURL:         getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:     getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:       getEnv("MPESA_SHORT_CODE", "174379"),
			Passkey:         getEnv("MPESA_PASSKEY", ""),
			TransactionType: getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			CallbackURL:     getEnv("MPESA_CALLBACK_URL", "http://localhost:8080/api/v1/callbacks/push-payment"),
			CallbackToken:   getEnv("MPESA_CALLBACK_TOKEN", ""),
			AllowedCIDRs:    getEnvAsList("MPESA_ALLOWED_CIDRS", ""),
			AccountRef:      getEnv("MPESA_ACCOUNT_REFERENCE", "FitnessCenterPayment"),
			Description:     getEnv("MPESA_TRANSACTION_DESC", "Payment for fitness services"),
		},
		PayPal: PayPalConfig{
			BaseURL:      getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			ClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
			WebhookID:    getEnv("PAYPAL_WEBHOOK_ID", ""),
			ReturnURL:    getEnv("PAYPAL_RETURN_URL", "http://localhost:3000/paypal/success"),
			CancelURL:    getEnv("PAYPAL_CANCEL_URL", "http://localhost:3000/paypal/cancel"),
		},
		App: AppConfig{
			InitiationTimeout:  getEnvAsDuration("INITIATION_TIMEOUT", "20s"),
			GatewayHTTPTimeout: getEnvAsDuration("GATEWAY_HTTP_TIMEOUT", "30s"),
			ApplyMaxRetries:    getEnvAsInt("APPLY_MAX_RETRIES", 5),
			IdempotencyTTL:     getEnvAsDuration("IDEMPOTENCY_TTL", "24h"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	switch c.Ledger.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name cannot be empty")
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo uri cannot be empty")
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("mongo database cannot be empty")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid ledger driver: %s (must be postgres, mongo, or memory)", c.Ledger.Driver)
	}

	switch c.Ledger.IdempotencyStore {
	case DriverPostgres:
		if c.Ledger.Driver != DriverPostgres {
			return fmt.Errorf("postgres idempotency store requires the postgres ledger driver")
		}
	case DriverRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("redis idempotency store requires REDIS_ENABLED=true")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid idempotency store: %s (must be postgres, redis, or memory)", c.Ledger.IdempotencyStore)
	}

	if c.Redis.Enabled && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis lock ttl must be positive")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic cannot be empty when kafka is enabled")
		}
	}

	if c.Archive.Enabled && (c.Archive.Region == "" || c.Archive.Bucket == "") {
		return fmt.Errorf("archive region and bucket are required when archiving is enabled")
	}

	if c.App.InitiationTimeout <= 0 {
		return fmt.Errorf("initiation timeout must be positive")
	}
	if c.App.ApplyMaxRetries < 1 {
		return fmt.Errorf("apply max retries must be at least 1, got %d", c.App.ApplyMaxRetries)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func defaultIdempotencyStore(ledgerDriver string) string {
	switch ledgerDriver {
	case DriverMongo:
		return DriverRedis
	case DriverMemory:
		return DriverMemory
	default:
		return DriverPostgres
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key, defaultValue string) []string {
	var items []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to parsing the default if provided value is invalid
		duration, err = time.ParseDuration(defaultValue)
		if err != nil {
			return 0
		}
	}
	return duration
}
