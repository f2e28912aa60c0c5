// Package config handles configuration for the server component: defaults,
// a JSON overlay, MEDKEEPER_* environment variables and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Database drivers accepted in DatabaseDriver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultAdminSecret is the development admin secret. Validate accepts it
// only with the memory driver.
const DefaultAdminSecret = "secretKey"

// Config holds runtime settings for the MedKeeper server.
//
// Document storage is S3 when S3Bucket is set, the local directory
// StorageDir otherwise. Kafka and SQS ingestion run only when configured;
// SQS uses the S3 credentials.
type Config struct {
	EndpointAddrGRPC  string        `env:"MEDKEEPER_ADDRESS"`
	DatabaseDriver    string        `env:"MEDKEEPER_DB_DRIVER"`
	DatabaseDSN       string        `env:"MEDKEEPER_DATABASE_DSN"`
	AdminSecret       string        `env:"MEDKEEPER_ADMIN_SECRET"`
	SessionTTL        time.Duration `env:"MEDKEEPER_SESSION_TTL"`
	ResetTTL          time.Duration `env:"MEDKEEPER_RESET_TTL"`
	MinPasswordLength int           `env:"MEDKEEPER_MIN_PASSWORD_LENGTH"`
	DownloadURLTTL    time.Duration `env:"MEDKEEPER_DOWNLOAD_URL_TTL"`
	IngestWorkers     int           `env:"MEDKEEPER_INGEST_WORKERS"`
	LogLevel          string        `env:"MEDKEEPER_LOG_LEVEL"`

	StorageDir     string `env:"MEDKEEPER_STORAGE_DIR"`
	S3Bucket       string `env:"MEDKEEPER_S3_BUCKET"`
	S3Region       string `env:"MEDKEEPER_S3_REGION"`
	S3BaseEndpoint string `env:"MEDKEEPER_S3_ENDPOINT"`
	S3AccessKey    string `env:"MEDKEEPER_S3_ACCESS_KEY"`
	S3SecretKey    string `env:"MEDKEEPER_S3_SECRET_KEY"`

	SMTPHost     string `env:"MEDKEEPER_SMTP_HOST"`
	SMTPPort     int    `env:"MEDKEEPER_SMTP_PORT"`
	SMTPUsername string `env:"MEDKEEPER_SMTP_USERNAME"`
	SMTPPassword string `env:"MEDKEEPER_SMTP_PASSWORD"`
	SMTPFrom     string `env:"MEDKEEPER_SMTP_FROM"`

	KafkaBrokers []string `env:"MEDKEEPER_KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `env:"MEDKEEPER_KAFKA_TOPIC"`
	KafkaGroupID string   `env:"MEDKEEPER_KAFKA_GROUP_ID"`

	SQSQueueURL  string `env:"MEDKEEPER_SQS_QUEUE_URL"`
	SQSQueueName string `env:"MEDKEEPER_SQS_QUEUE_NAME"`
	SQSRegion    string `env:"MEDKEEPER_SQS_REGION"`
	SQSEndpoint  string `env:"MEDKEEPER_SQS_ENDPOINT"`
}

// LoadDefaults populates Config with development defaults. The admin secret
// must be overridden before a persistent driver is accepted.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDriver = DriverSQLite
	c.DatabaseDSN = "medkeeper.db"
	c.AdminSecret = DefaultAdminSecret
	c.SessionTTL = 24 * time.Hour
	c.ResetTTL = 60 * time.Minute
	c.MinPasswordLength = 8
	c.DownloadURLTTL = 15 * time.Minute
	c.IngestWorkers = 4
	c.LogLevel = "info"
	c.StorageDir = "data/documents"
	c.S3Region = "us-east-1"
	c.SMTPPort = 587
	c.KafkaGroupID = "medkeeper"
	c.SQSRegion = "us-east-1"
}

// KafkaEnabled reports whether a Kafka source is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// SQSEnabled reports whether an SQS source is configured.
func (c *Config) SQSEnabled() bool {
	return c.SQSQueueURL != "" || c.SQSQueueName != ""
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database dsn is required for driver %q", c.DatabaseDriver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	if c.AdminSecret == "" {
		return errors.New("admin secret is required")
	}
	if c.AdminSecret == DefaultAdminSecret && c.DatabaseDriver != DriverMemory {
		return fmt.Errorf("the default admin secret is only allowed with driver %q", DriverMemory)
	}
	if c.EndpointAddrGRPC == "" {
		return errors.New("grpc address is required")
	}
	if c.KafkaTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("kafka topic set without brokers")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
