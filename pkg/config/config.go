package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the asset manager.
// It is parsed once at process start and handed to constructors by value.
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	MediaService MediaServiceConfig
	Storage      StorageConfig
	Events       EventsConfig
	Kafka        KafkaConfig
	Webhook      WebhookConfig
	Encoder      EncoderConfig
	Ingest       IngestConfig
	Tracing      TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"assetmanager"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"APP_LOG_FORMAT" envDefault:"json"`
}

type HTTPConfig struct {
	Addr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"10m"`
	MaxBodyBytes   int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
}

// MediaServiceConfig holds the AAD service principal and REST endpoint of
// the media services account.
type MediaServiceConfig struct {
	APIEndpoint  string `env:"MEDIA_SERVICE_API,required,notEmpty"`
	TenantID     string `env:"MEDIA_SERVICE_AAD_TENANT,required,notEmpty"`
	ClientID     string `env:"MEDIA_SERVICE_CLIENT_ID,required,notEmpty"`
	ClientSecret string `env:"MEDIA_SERVICE_CLIENT_SECRET,required,notEmpty"`
	TokenScope   string `env:"MEDIA_SERVICE_TOKEN_SCOPE" envDefault:"https://rest.media.azure.net/.default"`
	APIVersion   string `env:"MEDIA_SERVICE_API_VERSION" envDefault:"2.19"`
	MaxRetries   int32  `env:"MEDIA_SERVICE_MAX_RETRIES" envDefault:"3"`
}

type StorageConfig struct {
	Provider         string `env:"STORAGE_PROVIDER" envDefault:"azure"`
	ConnectionString string `env:"MEDIA_SERVICE_STORAGE_CONNECTION_STRING"`
	Endpoint         string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region           string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	AccessKey        string `env:"STORAGE_ACCESS_KEY"`
	SecretKey        string `env:"STORAGE_SECRET_KEY"`
	UseSSL           bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

// EventsConfig selects where JobStartedEvents are published.
type EventsConfig struct {
	Publisher      string        `env:"EVENTS_PUBLISHER" envDefault:"eventgrid"`
	TopicHost      string        `env:"EVENTGRID_TOPIC_HOST"`
	TopicKey       string        `env:"EVENTGRID_TOPIC_KEY"`
	PublishTimeout time.Duration `env:"EVENTS_PUBLISH_TIMEOUT" envDefault:"30s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	JobEventsTopic   string        `env:"KAFKA_JOB_EVENTS_TOPIC" envDefault:"assetmanager.jobs"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"100ms"`
}

type WebhookConfig struct {
	Name            string `env:"WEBHOOK_NAME" envDefault:"EncodingWebHook"`
	URL             string `env:"WEBHOOK_URL"`
	AccessKey       string `env:"WEBHOOK_ACCESS_KEY"`
	VerifySignature bool   `env:"WEBHOOK_VERIFY_SIGNATURE" envDefault:"false"`
}

type EncoderConfig struct {
	MediaProcessor     string        `env:"ENCODER_MEDIA_PROCESSOR" envDefault:"Media Encoder Standard"`
	Preset             string        `env:"ENCODER_PRESET" envDefault:"Adaptive Streaming"`
	DeletePreviousJobs bool          `env:"ENCODER_DELETE_PREVIOUS_JOBS" envDefault:"true"`
	WriteLocatorTTL    time.Duration `env:"ENCODER_WRITE_LOCATOR_TTL" envDefault:"4h"`
}

type IngestConfig struct {
	PathPrefix  string `env:"INGEST_PATH_PREFIX" envDefault:"assets/video/chapters/original/"`
	ContentType string `env:"INGEST_CONTENT_TYPE" envDefault:"video/mp4"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=assetmanager"`
}

// Load parses environment variables into Config.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
