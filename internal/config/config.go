package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// A Duration is a time.Duration that accepts values like "200ms" in YAML
type Duration time.Duration

// UnmarshalYAML is an interface implementation for yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts the wrapper back to a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// A Config represents all configuration of the notification service
type Config struct {
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	Notifications  NotificationsConfig  `yaml:"notifications"`
	Batch          BatchConfig          `yaml:"batch"`
	Poller         PollerConfig         `yaml:"poller"`
}

// A DatabaseConfig contains settings for Postgres
type DatabaseConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	User               string
	Password           string
	Database           string
	SSLMode            string   `yaml:"ssl_mode"`
	MaxOpenConnections int      `yaml:"max_open_connections"`
	MinOpenConnections int      `yaml:"min_open_connections"`
	MinIdleConnections int      `yaml:"min_idle_connections"`
	HealthCheckPeriod  Duration `yaml:"health_check_period"`
}

// A RedisConfig contains settings for the shared key-value store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `yaml:"db"`
}

// A KafkaConfig contains settings for the batching work queue
type KafkaConfig struct {
	Topic     string `yaml:"topic"`
	GroupID   string `yaml:"group_id"`
	Listeners string `yaml:"listeners"`
	Workers   int    `yaml:"workers"`
}

// A CircuitBreakerConfig represents circuit breaker configurations
type CircuitBreakerConfig struct {
	Threshold int      `yaml:"threshold"`
	Cooldown  Duration `yaml:"cooldown"`
}

// A RetryConfig represents retry configurations for the shared transport
type RetryConfig struct {
	Attempts     int      `yaml:"attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	MaxJitter    Duration `yaml:"max_jitter"`
}

// A NotificationsConfig represents settings for per-order admin alerts
type NotificationsConfig struct {
	Channel         string   `yaml:"channel"`
	MaxAge          Duration `yaml:"max_age"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	ReplayInterval  Duration `yaml:"replay_interval"`
	OutboxBatchSize int      `yaml:"outbox_batch_size"`
}

// A BatchConfig represents settings for pending-batch accumulation and flushing
type BatchConfig struct {
	Interval        Duration `yaml:"interval"`
	MaxListLen      int      `yaml:"max_list_len"`
	MaxOrdersToSend int      `yaml:"max_orders_to_send"`
	PendingExpiry   Duration `yaml:"pending_expiry"`
}

// A PollerConfig represents settings for the paid-order poller
type PollerConfig struct {
	Interval     Duration `yaml:"interval"`
	ProcessedTTL Duration `yaml:"processed_ttl"`
}

// LoadConfig loads data into Config structure from a file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	config.loadEnv()
	return &config, nil
}

// applyDefaults fills the optional knobs that were left out of the file
func (c *Config) applyDefaults() {
	if c.Kafka.Workers <= 0 {
		c.Kafka.Workers = 10
	}
	if c.CircuitBreaker.Threshold <= 0 {
		c.CircuitBreaker.Threshold = 3
	}
	if c.CircuitBreaker.Cooldown <= 0 {
		c.CircuitBreaker.Cooldown = Duration(10 * time.Second)
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 5
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = Duration(200 * time.Millisecond)
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = Duration(10 * time.Second)
	}
	if c.Retry.MaxJitter <= 0 {
		c.Retry.MaxJitter = Duration(time.Second)
	}
	if c.Notifications.Channel == "" {
		c.Notifications.Channel = "admin:notifications"
	}
	if c.Notifications.MaxAge <= 0 {
		c.Notifications.MaxAge = Duration(12 * time.Hour)
	}
	if c.Notifications.CleanupInterval <= 0 {
		c.Notifications.CleanupInterval = Duration(time.Hour)
	}
	if c.Notifications.ReplayInterval <= 0 {
		c.Notifications.ReplayInterval = Duration(3 * time.Second)
	}
	if c.Notifications.OutboxBatchSize <= 0 {
		c.Notifications.OutboxBatchSize = 20
	}
	if c.Batch.Interval <= 0 {
		c.Batch.Interval = Duration(time.Minute)
	}
	if c.Batch.MaxListLen <= 0 {
		c.Batch.MaxListLen = 100
	}
	if c.Batch.MaxOrdersToSend <= 0 {
		c.Batch.MaxOrdersToSend = 10
	}
	if c.Batch.PendingExpiry <= 0 {
		c.Batch.PendingExpiry = Duration(time.Hour)
	}
	if c.Poller.Interval <= 0 {
		c.Poller.Interval = Duration(time.Minute)
	}
	if c.Poller.ProcessedTTL <= 0 {
		c.Poller.ProcessedTTL = Duration(48 * time.Hour)
	}
}

// loadEnv loads secrets into Config structure from the environmental variables
func (c *Config) loadEnv() {
	_ = godotenv.Load("deployments/.env")

	c.Database.User = os.Getenv("POSTGRES_USER")
	c.Database.Password = os.Getenv("POSTGRES_PASSWORD")
	c.Database.Database = os.Getenv("POSTGRES_DB")

	c.Redis.Addr = os.Getenv("REDIS_ADDR")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
}

// Validate checks if the most important fields are properly filled
func (c *Config) Validate() error {
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Host == "" {
		return errors.New("database host is required")
	}
	if c.Database.User == "" || c.Database.Database == "" {
		return errors.New("database credentials are required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}
	if c.Kafka.Listeners == "" {
		return errors.New("kafka listeners are required")
	}
	if c.Kafka.Topic == "" {
		return errors.New("kafka topic is required")
	}
	if c.Poller.ProcessedTTL <= c.Poller.Interval {
		return errors.New("processed set ttl must exceed the polling interval")
	}

	return nil
}
