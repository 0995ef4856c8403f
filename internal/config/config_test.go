package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_DRIVER", "")
	t.Setenv("IDEMPOTENCY_STORE", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Ledger.Driver)
	assert.Equal(t, DriverPostgres, cfg.Ledger.IdempotencyStore)
	assert.Equal(t, 20*time.Second, cfg.App.InitiationTimeout)
	assert.Equal(t, 5, cfg.App.ApplyMaxRetries)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "CustomerPayBillOnline", cfg.MPesa.TransactionType)
	assert.Empty(t, cfg.MPesa.AllowedCIDRs)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LEDGER_DRIVER", "mongo")
	t.Setenv("IDEMPOTENCY_STORE", "")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("MPESA_ALLOWED_CIDRS", "196.201.214.0/24, 196.201.213.0/24")
	t.Setenv("INITIATION_TIMEOUT", "5s")
	t.Setenv("APPLY_MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Ledger.Driver)
	assert.Equal(t, DriverRedis, cfg.Ledger.IdempotencyStore, "mongo ledger defaults to redis idempotency")
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"196.201.214.0/24", "196.201.213.0/24"}, cfg.MPesa.AllowedCIDRs)
	assert.Equal(t, 5*time.Second, cfg.App.InitiationTimeout)
	assert.Equal(t, 5, cfg.App.ApplyMaxRetries, "invalid int falls back to default")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{Host: "localhost", DBName: "reconciler"},
			Ledger:   LedgerConfig{Driver: DriverPostgres, IdempotencyStore: DriverPostgres},
			Redis:    RedisConfig{LockTTL: time.Second},
			App:      AppConfig{InitiationTimeout: time.Second, ApplyMaxRetries: 3},
			Logger:   LoggerConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "empty port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Ledger.Driver = "sqlite" }, wantErr: "invalid ledger driver"},
		{
			name: "postgres idempotency without postgres ledger",
			mutate: func(c *Config) {
				c.Ledger.Driver = DriverMemory
			},
			wantErr: "requires the postgres ledger driver",
		},
		{
			name:    "redis idempotency without redis",
			mutate:  func(c *Config) { c.Ledger.IdempotencyStore = DriverRedis },
			wantErr: "REDIS_ENABLED",
		},
		{
			name: "kafka without topic",
			mutate: func(c *Config) {
				c.Kafka = KafkaConfig{Enabled: true, Brokers: []string{"b:9092"}}
			},
			wantErr: "kafka topic",
		},
		{
			name:    "archive without bucket",
			mutate:  func(c *Config) { c.Archive = ArchiveConfig{Enabled: true, Region: "eu-west-1"} },
			wantErr: "archive region and bucket",
		},
		{name: "zero retries", mutate: func(c *Config) { c.App.ApplyMaxRetries = 0 }, wantErr: "apply max retries"},
		{name: "bad log level", mutate: func(c *Config) { c.Logger.Level = "trace" }, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ledger sslmode=disable", cfg.DSN())
}

func TestLoggerConfig_NewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := (&LoggerConfig{Level: "warn"}).NewLoggerTo(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "gateway_reference", "R1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, serviceName, line["service"])
	assert.Equal(t, "R1", line["gateway_reference"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("unknown"))
}
