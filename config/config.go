package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// VERSION is the build version, carried on Config.Version.
const VERSION = "1.0"

// Config is the union of every tunable for both processes (the
// ingestion HTTP server and the delivery worker); each main() reads
// only the fields it needs.
type Config struct {
	Environment string
	LogLevel    string
	Version     string

	Database DatabaseConfig
	HTTP     HTTPConfig
	Ingest   IngestConfig
	Worker   WorkerConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds the single shared connection string. Tenant
// isolation is enforced at the query level (every table carries
// tenant_id), not by separate databases or schemas per tenant.
type DatabaseConfig struct {
	URL string
}

// HTTPConfig tunes the ingestion HTTP server.
type HTTPConfig struct {
	Port    int
	Timeout time.Duration
}

// IngestConfig tunes upstream webhook verification and the rate limiter
// guarding the ingestion endpoint.
type IngestConfig struct {
	UpstreamSigningSecret string
	SignatureTolerance    time.Duration
	RateLimitCapacity     float64
	RateLimitRefillPerSec float64
	SecretEncryptionKey   string
}

// WorkerConfig tunes the delivery worker process.
type WorkerConfig struct {
	PollInterval            time.Duration
	BatchSize               int
	Timeout                 time.Duration
	HTTPTimeout             time.Duration
	HTTPPoolSize            int
	MaxConcurrentDeliveries int
	AuditLogEnabled         bool

	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryMaxAttempts int
}

// MetricsConfig tunes the /metrics exporter shared by both processes.
type MetricsConfig struct {
	Port int
}

// Load reads configuration from the environment (and an optional .env
// file in the working directory) via viper, applying the spec defaults
// before returning. It fails when DATABASE_URL, UPSTREAM_SIGNING_SECRET
// or WEBHOOK_SECRET_ENCRYPTION_KEY is empty.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("HTTP_TIMEOUT", 30)

	v.SetDefault("RATE_LIMIT_CAPACITY", 20.0)
	v.SetDefault("RATE_LIMIT_REFILL_PER_SEC", 20.0/60)
	v.SetDefault("SIGNATURE_TOLERANCE_SECONDS", 300)

	v.SetDefault("WORKER_POLL_INTERVAL", 5)
	v.SetDefault("WORKER_BATCH_SIZE", 10)
	v.SetDefault("WORKER_TIMEOUT", 60)
	v.SetDefault("HTTP_POOL_SIZE", 10)
	v.SetDefault("MAX_CONCURRENT_DELIVERIES", 10)
	v.SetDefault("AUDIT_LOG_ENABLED", true)

	v.SetDefault("RETRY_BASE_DELAY", 30)
	v.SetDefault("RETRY_MAX_DELAY", 3600)
	v.SetDefault("RETRY_MAX_ATTEMPTS", 5)

	v.SetDefault("METRICS_PORT", 9464)

	if cwd, err := os.Getwd(); err == nil {
		v.SetConfigName(".env")
		v.SetConfigType("env")
		v.AddConfigPath(cwd)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	dbURL := v.GetString("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Version:     VERSION,

		Database: DatabaseConfig{URL: dbURL},

		HTTP: HTTPConfig{
			Port:    v.GetInt("HTTP_PORT"),
			Timeout: time.Duration(v.GetInt("HTTP_TIMEOUT")) * time.Second,
		},

		Ingest: IngestConfig{
			UpstreamSigningSecret: v.GetString("UPSTREAM_SIGNING_SECRET"),
			SignatureTolerance:    time.Duration(v.GetInt("SIGNATURE_TOLERANCE_SECONDS")) * time.Second,
			RateLimitCapacity:     v.GetFloat64("RATE_LIMIT_CAPACITY"),
			RateLimitRefillPerSec: v.GetFloat64("RATE_LIMIT_REFILL_PER_SEC"),
			SecretEncryptionKey:   v.GetString("WEBHOOK_SECRET_ENCRYPTION_KEY"),
		},

		Worker: WorkerConfig{
			PollInterval:            time.Duration(v.GetInt("WORKER_POLL_INTERVAL")) * time.Second,
			BatchSize:               v.GetInt("WORKER_BATCH_SIZE"),
			Timeout:                 time.Duration(v.GetInt("WORKER_TIMEOUT")) * time.Second,
			HTTPTimeout:             time.Duration(v.GetInt("HTTP_TIMEOUT")) * time.Second,
			HTTPPoolSize:            v.GetInt("HTTP_POOL_SIZE"),
			MaxConcurrentDeliveries: v.GetInt("MAX_CONCURRENT_DELIVERIES"),
			AuditLogEnabled:         v.GetBool("AUDIT_LOG_ENABLED"),
			RetryBaseDelay:          time.Duration(v.GetInt("RETRY_BASE_DELAY")) * time.Second,
			RetryMaxDelay:           time.Duration(v.GetInt("RETRY_MAX_DELAY")) * time.Second,
			RetryMaxAttempts:        v.GetInt("RETRY_MAX_ATTEMPTS"),
		},

		Metrics: MetricsConfig{Port: v.GetInt("METRICS_PORT")},
	}

	if cfg.Ingest.UpstreamSigningSecret == "" {
		return nil, fmt.Errorf("UPSTREAM_SIGNING_SECRET must be set")
	}
	if cfg.Ingest.SecretEncryptionKey == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET_ENCRYPTION_KEY must be set")
	}

	return cfg, nil
}

// IsDevelopment reports whether ENVIRONMENT is "development".
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
