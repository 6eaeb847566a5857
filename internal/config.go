package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration.
type Config struct {
	// Server holds server-specific configuration.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
		APIPath        string `yaml:"api_path"`
	} `yaml:"server"`
	Log LogConfig `yaml:"log"`
	// Providers contains configuration for each webhook dialect.
	Providers struct {
		GitHub ProviderConfig `yaml:"github"`
		GitLab ProviderConfig `yaml:"gitlab"`
	} `yaml:"providers"`
	// Queue holds configuration for the job transport.
	Queue QueueConfig `yaml:"queue"`
	// Storage configures the optional mirror sync ledger.
	Storage StorageConfig `yaml:"storage"`
	// Mirror is the repository option tree: global keys plus
	// owners.<owner>.repositories.<repo> and domains.<domain>.owners... overrides.
	Mirror map[string]interface{} `yaml:"mirror"`
}

// ProviderConfig represents the configuration for a single webhook dialect.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Secret  string `yaml:"secret"`
}

// QueueConfig holds the configuration of the job transport.
type QueueConfig struct {
	Driver       string             `yaml:"driver"`
	Drivers      []string           `yaml:"drivers"`
	Topic        string             `yaml:"topic"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	RiverQueue   RiverQueueConfig   `yaml:"riverqueue"`
	PublishRetry PublishRetryConfig `yaml:"publish_retry"`
	Worker       WorkerConfig       `yaml:"worker"`
}

// GoChannelConfig holds configuration for the in-process GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka pub/sub.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

// NATSConfig holds configuration for the NATS streaming pub/sub.
type NATSConfig struct {
	ClusterID      string `yaml:"cluster_id"`
	ClientID       string `yaml:"client_id"`
	ClientIDSuffix string `yaml:"client_id_suffix"`
	URL            string `yaml:"url"`
	Durable        string `yaml:"durable"`
}

// AMQPConfig holds configuration for the AMQP pub/sub.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL pub/sub.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	ConsumerGroup        string `yaml:"consumer_group"`
	InitializeSchema     bool   `yaml:"initialize_schema"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the River job queue.
type RiverQueueConfig struct {
	DSN         string   `yaml:"dsn"`
	Queue       string   `yaml:"queue"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
	MaxWorkers  int      `yaml:"max_workers"`
}

type PublishRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// WorkerConfig controls job consumption.
type WorkerConfig struct {
	// Embedded runs the consumer inside the serve process.
	Embedded    *bool `yaml:"embedded"`
	Concurrency int   `yaml:"concurrency"`
}

// StorageConfig configures the GORM-backed mirror ledger. An empty driver disables it.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// EmbeddedWorker reports whether the serve process should consume jobs itself.
// It defaults to true, which is the only option for the in-process gochannel driver.
func (c QueueConfig) EmbeddedWorker() bool {
	if c.Worker.Embedded == nil {
		return true
	}
	return *c.Worker.Embedded
}

// LoadConfig loads the application configuration from a YAML file.
// It expands environment variables and applies default values.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration bytes.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	expanded, err := envsubst.Bytes(data)
	if err != nil {
		return cfg, fmt.Errorf("expand env: %w", err)
	}
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Server.APIPath == "" {
		cfg.Server.APIPath = "/api"
	}
	if cfg.Providers.GitHub.Path == "" {
		cfg.Providers.GitHub.Path = "/webhooks/github"
	}
	if cfg.Providers.GitLab.Path == "" {
		cfg.Providers.GitLab.Path = "/webhooks/gitlab"
	}
	if cfg.Queue.Driver == "" && len(cfg.Queue.Drivers) == 0 {
		cfg.Queue.Driver = "gochannel"
	}
	if cfg.Queue.Topic == "" {
		cfg.Queue.Topic = "mirror.sync"
	}
	if cfg.Queue.GoChannel.OutputChannelBuffer == 0 {
		cfg.Queue.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Queue.HTTP.Mode == "" {
		cfg.Queue.HTTP.Mode = "topic_url"
	}
	if cfg.Queue.NATS.ClientIDSuffix == "" {
		cfg.Queue.NATS.ClientIDSuffix = "-worker"
	}
	if cfg.Queue.RiverQueue.Queue == "" {
		cfg.Queue.RiverQueue.Queue = "default"
	}
	if cfg.Queue.RiverQueue.MaxAttempts == 0 {
		cfg.Queue.RiverQueue.MaxAttempts = 1
	}
	if cfg.Queue.RiverQueue.MaxWorkers == 0 {
		cfg.Queue.RiverQueue.MaxWorkers = 5
	}
	if cfg.Queue.PublishRetry.Attempts == 0 {
		cfg.Queue.PublishRetry.Attempts = 3
	}
	if cfg.Queue.PublishRetry.DelayMS == 0 {
		cfg.Queue.PublishRetry.DelayMS = 500
	}
	if cfg.Queue.Worker.Concurrency == 0 {
		cfg.Queue.Worker.Concurrency = 4
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "mirror_syncs"
	}
	if cfg.Mirror == nil {
		cfg.Mirror = map[string]interface{}{}
	}
}

func validate(cfg Config) error {
	for _, section := range []string{"domains", "owners"} {
		value, ok := cfg.Mirror[section]
		if !ok || value == nil {
			continue
		}
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("mirror.%s must be a mapping, got %T", section, value)
		}
	}
	for _, driver := range cfg.Queue.Drivers {
		if strings.TrimSpace(driver) == "" {
			return fmt.Errorf("queue.drivers contains an empty entry")
		}
	}
	return nil
}
