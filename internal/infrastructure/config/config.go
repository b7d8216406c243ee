package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend selects the persistence adapter.
type StoreBackend string

const (
	StorePostgres StoreBackend = "postgres"
	StoreMemory   StoreBackend = "memory"
)

type DatabaseConfig struct {
	Host           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
	LockTimeout    time.Duration
	Port           int
	MaxConns       int32
}

// DSN returns a postgres:// URL usable by both pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type KafkaConfig struct {
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
	EventsTopic   string
	MpesaTopic    string
	ConsumerGroup string
	Brokers       []string
	TLS           bool
	SASLEnabled   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	PublicKeyPath string
	Issuer        string
	Enabled       bool
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
	Enabled  bool
}

type TelemetryConfig struct {
	OTLPEndpoint string
	SampleRatio  float64
	Insecure     bool
}

type Config struct {
	ServiceName    string
	ServiceVersion string
	LogLevel       string
	LogFormat      string
	Store          StoreBackend
	DB             DatabaseConfig
	Kafka          KafkaConfig
	Redis          RedisConfig
	Auth           AuthConfig
	TLS            TLSConfig
	Telemetry      TelemetryConfig
	IdempotencyTTL time.Duration
	OutboxInterval time.Duration
	OutboxBatch    int
	GRPCPort       int
	HTTPPort       int
	GRPCReflection bool
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DB.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required when STORE_BACKEND=postgres"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if c.Auth.Enabled && c.Auth.PublicKeyPath == "" {
		errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required when JWT_ENABLED=true"))
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required when TLS_ENABLED=true"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func Load() Config {
	return Config{
		ServiceName:    getEnv("SERVICE_NAME", "loanbook"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		Store:          StoreBackend(getEnv("STORE_BACKEND", string(StorePostgres))),
		GRPCPort:       getEnvInt("GRPC_PORT", 9090),
		HTTPPort:       getEnvInt("HTTP_PORT", 8080),
		GRPCReflection: getEnvBool("GRPC_REFLECTION", false),
		DB: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "loanbook"),
			Password:       getEnv("DB_PASSWORD", ""),
			Name:           getEnv("DB_NAME", "loanbook"),
			SSLMode:        getEnv("DB_SSLMODE", "require"),
			MaxConns:       int32(getEnvInt("DB_MAX_CONNS", 20)),
			LockTimeout:    getEnvDuration("DB_LOCK_TIMEOUT", 5*time.Second),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://internal/infrastructure/persistence/postgres/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", "localhost:9092"),
			EventsTopic:   getEnv("EVENTS_TOPIC", "loanbook.events"),
			MpesaTopic:    getEnv("MPESA_TOPIC", ""),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "loanbook"),
			TLS:           getEnvBool("KAFKA_TLS", false),
			SASLEnabled:   getEnvBool("KAFKA_SASL_ENABLED", false),
			SASLMechanism: getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
			SASLUsername:  getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:  getEnv("KAFKA_SASL_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:       getEnvBool("JWT_ENABLED", false),
			PublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", ""),
			Issuer:        getEnv("JWT_ISSUER", "loanbook"),
		},
		TLS: TLSConfig{
			Enabled:  getEnvBool("TLS_ENABLED", false),
			CertFile: getEnv("TLS_CERT_FILE", ""),
			KeyFile:  getEnv("TLS_KEY_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0),
		},
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 72*time.Hour),
		OutboxInterval: getEnvDuration("OUTBOX_INTERVAL", time.Second),
		OutboxBatch:    getEnvInt("OUTBOX_BATCH", 100),
	}
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
