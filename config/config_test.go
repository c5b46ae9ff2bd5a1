package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `tickflow:
  name: "TestApp"
  version: "1.0"
feed:
  url: "wss://example.test/feed"
  product: "O1GC"
storage:
  s3:
    enabled: false
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Tickflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Tickflow.Name)
	}
	if cfg.Feed.Product != "O1GC" {
		t.Errorf("unexpected product: %s", cfg.Feed.Product)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Feed.Keepalive.CheckInterval != time.Second {
		t.Errorf("keepalive check interval = %v, want 1s", cfg.Feed.Keepalive.CheckInterval)
	}
	if cfg.Feed.Keepalive.WeekdayInterval != 60*time.Second {
		t.Errorf("weekday interval = %v, want 60s", cfg.Feed.Keepalive.WeekdayInterval)
	}
	if cfg.Feed.Keepalive.WeekendInterval != time.Hour {
		t.Errorf("weekend interval = %v, want 1h", cfg.Feed.Keepalive.WeekendInterval)
	}
	if cfg.Feed.ReconnectDelay != 5*time.Second {
		t.Errorf("reconnect delay = %v, want 5s", cfg.Feed.ReconnectDelay)
	}
	if cfg.Storage.Mongo.Database != "trading" {
		t.Errorf("mongo database = %q, want trading", cfg.Storage.Mongo.Database)
	}
	if cfg.Storage.Mongo.TradesCollection != "trade_records" || cfg.Storage.Mongo.BarsCollection != "trade_ohlc" {
		t.Errorf("mongo collections = %q / %q", cfg.Storage.Mongo.TradesCollection, cfg.Storage.Mongo.BarsCollection)
	}
	if cfg.Channels.ArchiveBuffer != 1024 {
		t.Errorf("archive buffer = %d, want 1024", cfg.Channels.ArchiveBuffer)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	t.Setenv("MONGO_URI", " mongodb://db.test:27017 ")
	t.Setenv("MONGO_USERNAME", "ingest")
	t.Setenv("MONGO_PASSWORD", "secret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.Mongo.URI != "mongodb://db.test:27017" {
		t.Errorf("mongo uri = %q", cfg.Storage.Mongo.URI)
	}
	if cfg.Storage.Mongo.Username != "ingest" || cfg.Storage.Mongo.Password != "secret" {
		t.Errorf("mongo credentials not applied from environment")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Tickflow: TickflowConfig{Name: "TestApp", Version: "1.0"},
			Feed: FeedConfig{
				URL:            "wss://example.test/feed",
				ReconnectDelay: 5 * time.Second,
				Keepalive: KeepaliveConfig{
					CheckInterval:   time.Second,
					WeekdayInterval: 60 * time.Second,
					WeekendInterval: time.Hour,
				},
			},
			Channels: ChannelsConfig{ArchiveBuffer: 16},
			Writer:   WriterConfig{FlushInterval: time.Minute},
		}
	}

	if err := validateConfig(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Tickflow.Name = "" }},
		{"missing feed url", func(c *Config) { c.Feed.URL = "" }},
		{"zero reconnect delay", func(c *Config) { c.Feed.ReconnectDelay = 0 }},
		{"zero check interval", func(c *Config) { c.Feed.Keepalive.CheckInterval = 0 }},
		{"weekend shorter than weekday", func(c *Config) {
			c.Feed.Keepalive.WeekendInterval = 30 * time.Second
		}},
		{"s3 enabled without bucket", func(c *Config) {
			c.Storage.S3.Enabled = true
			c.Storage.S3.Region = "us-east-1"
		}},
		{"s3 invalid bucket", func(c *Config) {
			c.Storage.S3.Enabled = true
			c.Storage.S3.Region = "us-east-1"
			c.Storage.S3.Bucket = "Bad_Bucket"
		}},
		{"kafka enabled without brokers", func(c *Config) {
			c.Storage.Kafka.Enabled = true
			c.Storage.Kafka.Topic = "trades"
		}},
		{"mongo uri without database", func(c *Config) {
			c.Storage.Mongo.URI = "mongodb://db.test:27017"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Error("validation passed, want error")
			}
		})
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	valid := []string{"tickflow-archive", "trades.2026", "abc"}
	invalid := []string{"ab", "UPPER", "-leading", "trailing-", "dots..dots", ".start", "end."}

	for _, name := range valid {
		if !isValidS3Bucket(name) {
			t.Errorf("bucket %q rejected", name)
		}
	}
	for _, name := range invalid {
		if isValidS3Bucket(name) {
			t.Errorf("bucket %q accepted", name)
		}
	}
}
