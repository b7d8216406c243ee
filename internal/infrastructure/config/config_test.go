package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, ":9090", cfg.GRPCAddr())
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 72*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "loanbook.events", cfg.Kafka.EventsTopic)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("GRPC_PORT", "7000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("IDEMPOTENCY_TTL", "15m")
	t.Setenv("JWT_ENABLED", "true")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 7000, cfg.GRPCPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.IdempotencyTTL)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 5432, cfg.DB.Port, "invalid values fall back to the default")
}

func TestValidate(t *testing.T) {
	t.Run("memory backend needs no database", func(t *testing.T) {
		cfg := Load()
		cfg.Store = StoreMemory
		assert.NoError(t, cfg.Validate())
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := Load()
		cfg.Auth.Enabled = true
		cfg.TLS.Enabled = true
		cfg.IdempotencyTTL = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorContains(t, err, "DB_PASSWORD")
		assert.ErrorContains(t, err, "JWT_PUBLIC_KEY_PATH")
		assert.ErrorContains(t, err, "TLS_CERT_FILE")
		assert.ErrorContains(t, err, "IDEMPOTENCY_TTL")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := Load()
		cfg.Store = "sqlite"
		cfg.DB.Password = "x"
		assert.ErrorContains(t, cfg.Validate(), "STORE_BACKEND")
	})
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5433, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", db.DSN())
}
