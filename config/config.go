package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tickflow TickflowConfig `yaml:"tickflow"`
	Feed     FeedConfig     `yaml:"feed"`
	Channels ChannelsConfig `yaml:"channels"`
	Writer   WriterConfig   `yaml:"writer"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TickflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type FeedConfig struct {
	URL            string          `yaml:"url"`
	Product        string          `yaml:"product"`
	DialTimeout    time.Duration   `yaml:"dial_timeout"`
	ReconnectDelay time.Duration   `yaml:"reconnect_delay"`
	Keepalive      KeepaliveConfig `yaml:"keepalive"`
}

// KeepaliveConfig controls the re-subscription scheduler. The weekend
// interval applies when the instrument's local calendar day is Saturday
// or Sunday.
type KeepaliveConfig struct {
	CheckInterval   time.Duration `yaml:"check_interval"`
	WeekdayInterval time.Duration `yaml:"weekday_interval"`
	WeekendInterval time.Duration `yaml:"weekend_interval"`
}

type ChannelsConfig struct {
	ArchiveBuffer int `yaml:"archive_buffer"`
}

type WriterConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	Compression   string        `yaml:"compression"`
	TimeFormat    string        `yaml:"time_format"`
}

type StorageConfig struct {
	Mongo MongoConfig `yaml:"mongo"`
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

// MongoConfig describes the trade/bar persistence backend. An empty URI
// selects the in-memory store, which is only acceptable outside
// production-like environments.
type MongoConfig struct {
	URI              string        `yaml:"uri"`
	Database         string        `yaml:"database"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	AuthSource       string        `yaml:"auth_source"`
	TradesCollection string        `yaml:"trades_collection"`
	BarsCollection   string        `yaml:"bars_collection"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Feed: FeedConfig{
			DialTimeout:    10 * time.Second,
			ReconnectDelay: 5 * time.Second,
			Keepalive: KeepaliveConfig{
				CheckInterval:   time.Second,
				WeekdayInterval: 60 * time.Second,
				WeekendInterval: time.Hour,
			},
		},
		Channels: ChannelsConfig{ArchiveBuffer: 1024},
		Writer: WriterConfig{
			FlushInterval: time.Minute,
			Compression:   "snappy",
			TimeFormat:    "{year}/{month}/{day}",
		},
		Storage: StorageConfig{
			Mongo: MongoConfig{
				Database:         "trading",
				AuthSource:       "admin",
				TradesCollection: "trade_records",
				BarsCollection:   "trade_ohlc",
				ConnectTimeout:   10 * time.Second,
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployment credentials come from the environment
// instead of the config file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MONGO_URI"); v != "" {
		config.Storage.Mongo.URI = strings.TrimSpace(v)
	}
	if v := os.Getenv("MONGO_USERNAME"); v != "" {
		config.Storage.Mongo.Username = strings.TrimSpace(v)
	}
	if v := os.Getenv("MONGO_PASSWORD"); v != "" {
		config.Storage.Mongo.Password = strings.TrimSpace(v)
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)
}

func validateConfig(cfg *Config) error {
	if cfg.Tickflow.Name == "" {
		return fmt.Errorf("tickflow.name is required")
	}
	if cfg.Tickflow.Version == "" {
		return fmt.Errorf("tickflow.version is required")
	}

	if cfg.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if cfg.Feed.ReconnectDelay <= 0 {
		return fmt.Errorf("feed.reconnect_delay must be greater than 0")
	}
	if cfg.Feed.Keepalive.CheckInterval <= 0 {
		return fmt.Errorf("feed.keepalive.check_interval must be greater than 0")
	}
	if cfg.Feed.Keepalive.WeekdayInterval <= 0 || cfg.Feed.Keepalive.WeekendInterval <= 0 {
		return fmt.Errorf("feed.keepalive intervals must be greater than 0")
	}
	if cfg.Feed.Keepalive.WeekendInterval < cfg.Feed.Keepalive.WeekdayInterval {
		return fmt.Errorf("feed.keepalive.weekend_interval must not be shorter than weekday_interval")
	}

	if cfg.Channels.ArchiveBuffer <= 0 {
		return fmt.Errorf("channels.archive_buffer must be greater than 0")
	}
	if cfg.Writer.FlushInterval <= 0 {
		return fmt.Errorf("writer.flush_interval must be greater than 0")
	}

	if cfg.Storage.Mongo.URI == "" && IsProductionLike(AppEnvironment()) {
		return fmt.Errorf("storage.mongo.uri is required in %s", AppEnvironment())
	}
	if cfg.Storage.Mongo.URI != "" {
		if cfg.Storage.Mongo.Database == "" {
			return fmt.Errorf("storage.mongo.database is required")
		}
		if cfg.Storage.Mongo.TradesCollection == "" || cfg.Storage.Mongo.BarsCollection == "" {
			return fmt.Errorf("storage.mongo collections are required")
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when kafka is enabled")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
