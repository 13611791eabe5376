// Package config loads server settings from an optional TOML file and
// SWITCHBOARD_* environment variables. Environment values win.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

type Config struct {
	HTTPAddr         string `toml:"http_addr"`          // SWITCHBOARD_HTTP_ADDR (default ":8080")
	AuthToken        string `toml:"auth_token"`         // SWITCHBOARD_AUTH_TOKEN (empty = auth disabled)
	LogLevel         string `toml:"log_level"`          // SWITCHBOARD_LOG_LEVEL (default "info")
	DatabaseURL      string `toml:"database_url"`       // SWITCHBOARD_DATABASE_URL (empty = in-memory store)
	DatabaseMaxConns int    `toml:"database_max_conns"` // SWITCHBOARD_DATABASE_MAX_CONNS (default 10)

	RedisURL string        `toml:"redis_url"` // SWITCHBOARD_REDIS_URL (enables the config cache)
	CacheTTL time.Duration `toml:"cache_ttl"` // SWITCHBOARD_CACHE_TTL (default 30s)

	// Channels lists the adapters to register. SWITCHBOARD_CHANNELS, comma separated.
	Channels       []model.ChannelType `toml:"channels"`
	ChannelTimeout time.Duration       `toml:"channel_timeout"` // SWITCHBOARD_CHANNEL_TIMEOUT (default 10s)

	NATSURL           string `toml:"nats_url"`            // SWITCHBOARD_NATS_URL
	NATSSubjectPrefix string `toml:"nats_subject_prefix"` // SWITCHBOARD_NATS_SUBJECT_PREFIX (default "switchboard")
	InboundSubject    string `toml:"inbound_subject"`     // SWITCHBOARD_INBOUND_SUBJECT (default "switchboard.emit"; "-" disables)
	InboundWorkers    int    `toml:"inbound_workers"`     // SWITCHBOARD_INBOUND_WORKERS (default 4)
	InboundQueue      string `toml:"inbound_queue"`       // SWITCHBOARD_INBOUND_QUEUE (default "switchboard"; "-" for no queue group)

	SQSRegion      string `toml:"sqs_region"`       // SWITCHBOARD_SQS_REGION (default "us-east-1")
	SQSEndpoint    string `toml:"sqs_endpoint"`     // SWITCHBOARD_SQS_ENDPOINT
	SQSQueuePrefix string `toml:"sqs_queue_prefix"` // SWITCHBOARD_SQS_QUEUE_PREFIX

	// WebsocketRequirePresence skips broadcasts for instances not reported open.
	WebsocketRequirePresence bool `toml:"websocket_require_presence"` // SWITCHBOARD_WEBSOCKET_REQUIRE_PRESENCE

	// WebsocketOrigins lists browser origins allowed to open /ws/{instance}
	// besides the server's own host. "*" allows any. SWITCHBOARD_WEBSOCKET_ORIGINS, comma separated.
	WebsocketOrigins []string `toml:"websocket_origins"`

	PresenceDeadThreshold time.Duration `toml:"presence_dead_threshold"` // SWITCHBOARD_PRESENCE_DEAD_THRESHOLD (default 10m)
	PresenceSweepInterval time.Duration `toml:"presence_sweep_interval"` // SWITCHBOARD_PRESENCE_SWEEP_INTERVAL (default 30s)

	BackupInterval   time.Duration `toml:"backup_interval"`    // SWITCHBOARD_BACKUP_INTERVAL (default 1h; 0 = disabled)
	BackupS3Bucket   string        `toml:"backup_s3_bucket"`   // SWITCHBOARD_BACKUP_S3_BUCKET (enables backups)
	BackupS3Prefix   string        `toml:"backup_s3_prefix"`   // SWITCHBOARD_BACKUP_S3_PREFIX (default "switchboard")
	BackupS3Region   string        `toml:"backup_s3_region"`   // SWITCHBOARD_BACKUP_S3_REGION (default "us-east-1")
	BackupS3Endpoint string        `toml:"backup_s3_endpoint"` // SWITCHBOARD_BACKUP_S3_ENDPOINT (MinIO and similar)
	BackupSnapshots  bool          `toml:"backup_snapshots"`   // SWITCHBOARD_BACKUP_SNAPSHOTS
	BackupDir        string        `toml:"backup_dir"`         // SWITCHBOARD_BACKUP_DIR (local copy; enables backups)
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		HTTPAddr:              ":8080",
		LogLevel:              "info",
		CacheTTL:              30 * time.Second,
		Channels:              append([]model.ChannelType(nil), model.AllChannels...),
		ChannelTimeout:        10 * time.Second,
		NATSSubjectPrefix:     "switchboard",
		InboundSubject:        "switchboard.emit",
		InboundWorkers:        4,
		InboundQueue:          "switchboard",
		DatabaseMaxConns:      10,
		SQSRegion:             "us-east-1",
		PresenceDeadThreshold: 10 * time.Minute,
		PresenceSweepInterval: 30 * time.Second,
		BackupInterval:        time.Hour,
		BackupS3Prefix:        "switchboard",
		BackupS3Region:        "us-east-1",
	}
}

// Load builds the configuration. path names an optional TOML file; when it
// is empty SWITCHBOARD_CONFIG is consulted.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		path = os.Getenv("SWITCHBOARD_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	c.HTTPAddr = envOrDefault("SWITCHBOARD_HTTP_ADDR", c.HTTPAddr)
	c.AuthToken = envOrDefault("SWITCHBOARD_AUTH_TOKEN", c.AuthToken)
	c.LogLevel = envOrDefault("SWITCHBOARD_LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = envOrDefault("SWITCHBOARD_DATABASE_URL", c.DatabaseURL)
	c.RedisURL = envOrDefault("SWITCHBOARD_REDIS_URL", c.RedisURL)
	c.NATSURL = envOrDefault("SWITCHBOARD_NATS_URL", c.NATSURL)
	c.NATSSubjectPrefix = envOrDefault("SWITCHBOARD_NATS_SUBJECT_PREFIX", c.NATSSubjectPrefix)
	c.InboundSubject = envOrDefault("SWITCHBOARD_INBOUND_SUBJECT", c.InboundSubject)
	c.InboundQueue = envOrDefault("SWITCHBOARD_INBOUND_QUEUE", c.InboundQueue)
	c.SQSRegion = envOrDefault("SWITCHBOARD_SQS_REGION", c.SQSRegion)
	c.SQSEndpoint = envOrDefault("SWITCHBOARD_SQS_ENDPOINT", c.SQSEndpoint)
	c.SQSQueuePrefix = envOrDefault("SWITCHBOARD_SQS_QUEUE_PREFIX", c.SQSQueuePrefix)
	c.BackupS3Bucket = envOrDefault("SWITCHBOARD_BACKUP_S3_BUCKET", c.BackupS3Bucket)
	c.BackupS3Prefix = envOrDefault("SWITCHBOARD_BACKUP_S3_PREFIX", c.BackupS3Prefix)
	c.BackupS3Region = envOrDefault("SWITCHBOARD_BACKUP_S3_REGION", c.BackupS3Region)
	c.BackupS3Endpoint = envOrDefault("SWITCHBOARD_BACKUP_S3_ENDPOINT", c.BackupS3Endpoint)
	c.BackupDir = envOrDefault("SWITCHBOARD_BACKUP_DIR", c.BackupDir)

	var err error
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"SWITCHBOARD_CACHE_TTL", &c.CacheTTL},
		{"SWITCHBOARD_CHANNEL_TIMEOUT", &c.ChannelTimeout},
		{"SWITCHBOARD_PRESENCE_DEAD_THRESHOLD", &c.PresenceDeadThreshold},
		{"SWITCHBOARD_PRESENCE_SWEEP_INTERVAL", &c.PresenceSweepInterval},
		{"SWITCHBOARD_BACKUP_INTERVAL", &c.BackupInterval},
	} {
		if *d.dst, err = envDuration(d.key, *d.dst); err != nil {
			return nil, err
		}
	}
	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"SWITCHBOARD_WEBSOCKET_REQUIRE_PRESENCE", &c.WebsocketRequirePresence},
		{"SWITCHBOARD_BACKUP_SNAPSHOTS", &c.BackupSnapshots},
	} {
		if *b.dst, err = envBool(b.key, *b.dst); err != nil {
			return nil, err
		}
	}
	for _, n := range []struct {
		key string
		dst *int
	}{
		{"SWITCHBOARD_INBOUND_WORKERS", &c.InboundWorkers},
		{"SWITCHBOARD_DATABASE_MAX_CONNS", &c.DatabaseMaxConns},
	} {
		v := os.Getenv(n.key)
		if v == "" {
			continue
		}
		if *n.dst, err = strconv.Atoi(v); err != nil || *n.dst < 1 {
			return nil, fmt.Errorf("%s: want a positive integer, got %q", n.key, v)
		}
	}
	if v := os.Getenv("SWITCHBOARD_WEBSOCKET_ORIGINS"); v != "" {
		c.WebsocketOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.WebsocketOrigins = append(c.WebsocketOrigins, o)
			}
		}
	}
	if v := os.Getenv("SWITCHBOARD_CHANNELS"); v != "" {
		c.Channels = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Channels = append(c.Channels, model.ChannelType(s))
			}
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	seen := make(map[model.ChannelType]bool, len(c.Channels))
	for i, ch := range c.Channels {
		parsed, err := model.ParseChannelType(string(ch))
		if err != nil {
			return fmt.Errorf("channels: %w", err)
		}
		if seen[parsed] {
			return fmt.Errorf("channels: %s listed twice", parsed)
		}
		seen[parsed] = true
		c.Channels[i] = parsed
	}
	if c.InboundWorkers < 1 {
		return fmt.Errorf("inbound_workers must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// HasChannel reports whether ch is enabled.
func (c *Config) HasChannel(ch model.ChannelType) bool {
	for _, x := range c.Channels {
		if x == ch {
			return true
		}
	}
	return false
}

// ParseLevel maps a log level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
