// internal/config/config.go
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	HttpListenAddr string `mapstructure:"http_listen_addr"`

	EtcdEndpoints []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout   time.Duration `mapstructure:"etcd_timeout"`
	RedisAddr     string        `mapstructure:"redis_addr"`

	// IdempotencyBackend selects the guard implementation: memory, redis or etcd.
	IdempotencyBackend  string        `mapstructure:"idempotency_backend"`
	IdempotencyWindow   time.Duration `mapstructure:"idempotency_window"`
	IdempotencyCapacity int           `mapstructure:"idempotency_capacity"`
	SweepSchedule       string        `mapstructure:"sweep_schedule"`
	HistoryRetention    time.Duration `mapstructure:"history_retention"`

	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`

	SurveysBaseURL  string        `mapstructure:"surveys_base_url"`
	FeedsBaseURL    string        `mapstructure:"feeds_base_url"`
	NotifierBaseURL string        `mapstructure:"notifier_base_url"`
	ClientRetries   int           `mapstructure:"client_retries"`
	ClientBackoff   time.Duration `mapstructure:"client_backoff"`

	DeliveryQueueCapacity int           `mapstructure:"delivery_queue_capacity"`
	DeliveryWorkers       int           `mapstructure:"delivery_workers"`
	DeliverySendTimeout   time.Duration `mapstructure:"delivery_send_timeout"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("http_listen_addr", ":8080")
	viper.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	viper.SetDefault("etcd_timeout", "5s")
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("idempotency_backend", "memory")
	// Minutes, not seconds: the window has to outlive realistic client retry storms.
	viper.SetDefault("idempotency_window", "10m")
	viper.SetDefault("idempotency_capacity", 100000)
	viper.SetDefault("sweep_schedule", "0 * * * * *")
	viper.SetDefault("history_retention", "720h")
	viper.SetDefault("handler_timeout", "10s")
	viper.SetDefault("surveys_base_url", "http://localhost:8081")
	viper.SetDefault("feeds_base_url", "http://localhost:8082")
	viper.SetDefault("notifier_base_url", "http://localhost:8083")
	viper.SetDefault("client_retries", 2)
	viper.SetDefault("client_backoff", "500ms")
	viper.SetDefault("delivery_queue_capacity", 1024)
	viper.SetDefault("delivery_workers", 8)
	viper.SetDefault("delivery_send_timeout", "5s")

	// Set config file details
	viper.SetConfigName("config")    // name of config file (without extension)
	viper.SetConfigType("yaml")      // or "json", "toml"
	viper.AddConfigPath("./configs") // path to look for the config file in
	viper.AddConfigPath(".")         // optionally look for config in the working directory

	// Read environment variables
	viper.AutomaticEnv()

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error if desired
			// We can rely on defaults and env vars
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
