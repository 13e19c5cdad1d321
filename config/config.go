package config

import (
	"fmt"
	"time"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`

	// Tracing
	TraceExporter string `env:"TRACE_EXPORTER" env-default:"console"` // console, otlp-grpc, otlp-http
	TraceEndpoint string `env:"TRACE_ENDPOINT" env-default:"localhost:4317"`

	// PostgreSQL (lead store)
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode             string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Kafka Consumer (lead lifecycle events from the CRM)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"lead-events"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (dedup audit events)
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"lead-audit-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Dedup
	FuzzyMatchThreshold  float64 `env:"FUZZY_MATCH_THRESHOLD" env-default:"0.85"`
	SameCompanyThreshold float64 `env:"SAME_COMPANY_THRESHOLD" env-default:"0.90"`
	BatchTimeoutSeconds  int     `env:"BATCH_TIMEOUT_SECONDS" env-default:"300"`

	// Enrichment providers (handed to enrichment hooks, never read elsewhere)
	HunterAPIKey   string `env:"HUNTER_API_KEY" env-default:""`
	ClearbitAPIKey string `env:"CLEARBIT_API_KEY" env-default:""`
}

// Enrichment bundles the enrichment provider credentials for injection
type Enrichment struct {
	HunterAPIKey   string
	ClearbitAPIKey string
}

// EnrichmentConfig returns the enrichment credentials bundle
func (c Config) EnrichmentConfig() Enrichment {
	return Enrichment{
		HunterAPIKey:   c.HunterAPIKey,
		ClearbitAPIKey: c.ClearbitAPIKey,
	}
}

// DatabaseURL builds the Postgres connection string
func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DatabaseUserName, c.DatabasePassword, c.DatabaseHost, c.DatabasePort, c.DatabaseName, c.DatabaseSSLMode)
}
