package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/medkeeper/internal/flagx"
	"github.com/dmitrijs2005/medkeeper/internal/timex"
)

// JsonConfig is the shape of the JSON configuration file. Durations are
// timex.Duration so they can be written as "90s" or as nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC  string         `json:"endpoint_addr_grpc"`
	DatabaseDriver    string         `json:"database_driver"`
	DatabaseDSN       string         `json:"database_dsn"`
	AdminSecret       string         `json:"admin_secret"`
	SessionTTL        timex.Duration `json:"session_ttl"`
	ResetTTL          timex.Duration `json:"reset_ttl"`
	MinPasswordLength int            `json:"min_password_length"`
	DownloadURLTTL    timex.Duration `json:"download_url_ttl"`
	IngestWorkers     int            `json:"ingest_workers"`
	LogLevel          string         `json:"log_level"`

	StorageDir     string `json:"storage_dir"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`
	KafkaGroupID string   `json:"kafka_group_id"`

	SQSQueueURL  string `json:"sqs_queue_url"`
	SQSQueueName string `json:"sqs_queue_name"`
	SQSRegion    string `json:"sqs_region"`
	SQSEndpoint  string `json:"sqs_endpoint"`
}

// parseJson loads the file named by the -c or -config flag, if any, and
// copies every field it sets into config. Fields missing from the file keep
// their current values.
func parseJson(config *Config) error {

	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AdminSecret, c.AdminSecret)
	setPositive(&config.SessionTTL, c.SessionTTL.Duration)
	setPositive(&config.ResetTTL, c.ResetTTL.Duration)
	setPositive(&config.MinPasswordLength, c.MinPasswordLength)
	setPositive(&config.DownloadURLTTL, c.DownloadURLTTL.Duration)
	setPositive(&config.IngestWorkers, c.IngestWorkers)
	setString(&config.LogLevel, c.LogLevel)

	setString(&config.StorageDir, c.StorageDir)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)

	setString(&config.SMTPHost, c.SMTPHost)
	setPositive(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)

	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.KafkaGroupID, c.KafkaGroupID)

	setString(&config.SQSQueueURL, c.SQSQueueURL)
	setString(&config.SQSQueueName, c.SQSQueueName)
	setString(&config.SQSRegion, c.SQSRegion)
	setString(&config.SQSEndpoint, c.SQSEndpoint)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPositive[T ~int | ~int64](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
