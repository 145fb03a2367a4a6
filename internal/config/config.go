// Package config загружает конфигурацию сервиса из окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/eventsourcing"
	"github.com/akriventsev/vouchers/internal/notification"
	"github.com/akriventsev/vouchers/internal/readmodel"
)

// Config конфигурация сервиса ваучеров
type Config struct {
	HTTP          HTTPConfig          `envPrefix:"HTTP_"`
	EventStore    EventStoreConfig    `envPrefix:"EVENT_STORE_"`
	ReadModel     ReadModelConfig     `envPrefix:"READ_MODEL_"`
	Publisher     PublisherConfig     `envPrefix:"PUBLISHER_"`
	Notifications NotificationsConfig `envPrefix:"NOTIFICATIONS_"`
	Vouchers      VouchersConfig      `envPrefix:"VOUCHERS_"`
	Observability ObservabilityConfig `envPrefix:"OBSERVABILITY_"`
	LogLevel      string              `env:"LOG_LEVEL" envDefault:"info"`
}

// HTTPConfig конфигурация HTTP-сервера
type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// EventStoreConfig конфигурация журнала событий
type EventStoreConfig struct {
	Type            string `env:"TYPE" envDefault:"inmemory"`
	PostgresDSN     string `env:"POSTGRES_DSN"`
	PostgresSchema  string `env:"POSTGRES_SCHEMA" envDefault:"public"`
	PostgresTable   string `env:"POSTGRES_TABLE" envDefault:"event_store"`
	MongoURI        string `env:"MONGO_URI"`
	MongoDatabase   string `env:"MONGO_DATABASE" envDefault:"vouchers"`
	MongoCollection string `env:"MONGO_COLLECTION" envDefault:"events"`
	RunMigrations   bool   `env:"RUN_MIGRATIONS" envDefault:"false"`
}

// ReadModelConfig конфигурация read-модели
type ReadModelConfig struct {
	Type        string `env:"TYPE" envDefault:"inmemory"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

// PublisherConfig конфигурация внешнего публикатора событий
type PublisherConfig struct {
	Type               string        `env:"TYPE" envDefault:"none"`
	NATSURL            string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubjectPrefix  string        `env:"NATS_SUBJECT_PREFIX" envDefault:"vouchers.events"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaTopic         string        `env:"KAFKA_TOPIC" envDefault:"voucher-events"`
	KafkaBatchSize     int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	KafkaFlushInterval time.Duration `env:"KAFKA_FLUSH_INTERVAL" envDefault:"100ms"`
	RedisAddr          string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	RedisStream        string        `env:"REDIS_STREAM" envDefault:"voucher-events"`
	RedisStreamMaxLen  int64         `env:"REDIS_STREAM_MAX_LEN" envDefault:"0"`
}

// NotificationsConfig конфигурация конвейера нотификаций
type NotificationsConfig struct {
	TokenBaseURL      string        `env:"TOKEN_BASE_URL"`
	TokenClientID     string        `env:"TOKEN_CLIENT_ID"`
	TokenClientSecret string        `env:"TOKEN_CLIENT_SECRET"`
	TokenTimeout      time.Duration `env:"TOKEN_TIMEOUT" envDefault:"10s"`
	GatewayBaseURL    string        `env:"GATEWAY_BASE_URL"`
	GatewayTimeout    time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s"`
	EmailTemplatePath string        `env:"EMAIL_TEMPLATE_PATH" envDefault:"templates/voucher_email.html"`
	SMSTemplatePath   string        `env:"SMS_TEMPLATE_PATH" envDefault:"templates/voucher_sms.txt"`
	EmailSubject      string        `env:"EMAIL_SUBJECT" envDefault:"Voucher Issued"`
}

// VouchersConfig политика выпуска ваучеров
type VouchersConfig struct {
	CodeLength int `env:"CODE_LENGTH" envDefault:"10"`
	ExpiryDays int `env:"EXPIRY_DAYS" envDefault:"30"`
}

// ObservabilityConfig конфигурация метрик и трассировки
type ObservabilityConfig struct {
	ServiceName  string `env:"SERVICE_NAME" envDefault:"voucher-management"`
	TraceEnabled bool   `env:"TRACE_ENABLED" envDefault:"false"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load читает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	switch eventsourcing.StoreType(c.EventStore.Type) {
	case eventsourcing.StoreInMemory:
	case eventsourcing.StorePostgres:
		if c.EventStore.PostgresDSN == "" {
			return core.NewError(core.CodeInvalidConfig, "EVENT_STORE_POSTGRES_DSN is required for postgres store")
		}
	case eventsourcing.StoreMongoDB:
		if c.EventStore.MongoURI == "" {
			return core.NewError(core.CodeInvalidConfig, "EVENT_STORE_MONGO_URI is required for mongodb store")
		}
	default:
		return core.NewError(core.CodeInvalidConfig, "unknown event store type %q", c.EventStore.Type)
	}

	switch c.ReadModel.Type {
	case "inmemory":
	case "postgres":
		if c.ReadModel.PostgresDSN == "" {
			return core.NewError(core.CodeInvalidConfig, "READ_MODEL_POSTGRES_DSN is required for postgres read model")
		}
	default:
		return core.NewError(core.CodeInvalidConfig, "unknown read model type %q", c.ReadModel.Type)
	}

	switch events.PublisherType(c.Publisher.Type) {
	case events.PublisherNone, events.PublisherNATS, events.PublisherKafka, events.PublisherRedis:
	default:
		return core.NewError(core.CodeInvalidConfig, "unknown publisher type %q", c.Publisher.Type)
	}

	if c.Vouchers.CodeLength <= 0 {
		return core.NewError(core.CodeInvalidConfig, "voucher code length must be positive")
	}
	if c.Vouchers.ExpiryDays <= 0 {
		return core.NewError(core.CodeInvalidConfig, "voucher expiry days must be positive")
	}

	return nil
}

// EventStoreFactoryConfig собирает конфигурацию фабрики хранилищ
func (c *Config) EventStoreFactoryConfig() eventsourcing.StoreFactoryConfig {
	return eventsourcing.StoreFactoryConfig{
		Type: eventsourcing.StoreType(c.EventStore.Type),
		Postgres: eventsourcing.PostgresEventStoreConfig{
			DSN:        c.EventStore.PostgresDSN,
			SchemaName: c.EventStore.PostgresSchema,
			TableName:  c.EventStore.PostgresTable,
		},
		MongoDB: eventsourcing.MongoDBEventStoreConfig{
			URI:        c.EventStore.MongoURI,
			Database:   c.EventStore.MongoDatabase,
			Collection: c.EventStore.MongoCollection,
		},
	}
}

// PublisherFactoryConfig собирает конфигурацию фабрики публикаторов
func (c *Config) PublisherFactoryConfig() events.PublisherFactoryConfig {
	return events.PublisherFactoryConfig{
		Type: events.PublisherType(c.Publisher.Type),
		NATS: events.NATSPublisherConfig{
			URL:           c.Publisher.NATSURL,
			SubjectPrefix: c.Publisher.NATSSubjectPrefix,
		},
		Kafka: events.KafkaPublisherConfig{
			Brokers:       c.Publisher.KafkaBrokers,
			Topic:         c.Publisher.KafkaTopic,
			BatchSize:     c.Publisher.KafkaBatchSize,
			FlushInterval: c.Publisher.KafkaFlushInterval,
		},
		Redis: events.RedisPublisherConfig{
			Addr:         c.Publisher.RedisAddr,
			Password:     c.Publisher.RedisPassword,
			DB:           c.Publisher.RedisDB,
			StreamName:   c.Publisher.RedisStream,
			StreamMaxLen: c.Publisher.RedisStreamMaxLen,
		},
	}
}

// ReadModelStoreConfig собирает конфигурацию PostgreSQL read-модели
func (c *Config) ReadModelStoreConfig() readmodel.PostgresStoreConfig {
	return readmodel.PostgresStoreConfig{DSN: c.ReadModel.PostgresDSN}
}

// TokenProviderConfig собирает конфигурацию провайдера токенов
func (c *Config) TokenProviderConfig() notification.TokenProviderConfig {
	return notification.TokenProviderConfig{
		BaseURL:      c.Notifications.TokenBaseURL,
		ClientID:     c.Notifications.TokenClientID,
		ClientSecret: c.Notifications.TokenClientSecret,
		Timeout:      c.Notifications.TokenTimeout,
	}
}

// GatewayConfig собирает конфигурацию шлюза сообщений
func (c *Config) GatewayConfig() notification.GatewayConfig {
	return notification.GatewayConfig{
		BaseURL: c.Notifications.GatewayBaseURL,
		Timeout: c.Notifications.GatewayTimeout,
	}
}
