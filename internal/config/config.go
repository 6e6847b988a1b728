package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the prediction service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Models    ModelsConfig    `yaml:"models"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StorageConfig selects the bed-event store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// IngestConfig controls the Kafka consumer feeding the event store.
type IngestConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupID"`
}

// ModelsConfig locates the trained model artifacts.
type ModelsConfig struct {
	Dir string `yaml:"dir"`
}

// AggregateConfig tunes the rolling-window statistics builder.
type AggregateConfig struct {
	Window  time.Duration `yaml:"window"`
	Timeout time.Duration `yaml:"timeout"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of the aggregate snapshot.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("BEDCAST_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			GracefulTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "data/bedcast.db",
		},
		Ingest: IngestConfig{
			Enabled: false,
			Topic:   "bed-status-changes",
			GroupID: "bedcast",
		},
		Models: ModelsConfig{Dir: "models"},
		Aggregate: AggregateConfig{
			Window:  30 * 24 * time.Hour,
			Timeout: 3 * time.Second,
			TTL:     5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BEDCAST_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("BEDCAST_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("BEDCAST_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("BEDCAST_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("BEDCAST_INGEST_ENABLED"); v != "" {
		cfg.Ingest.Enabled = isTruthy(v)
	}
	if v := os.Getenv("BEDCAST_INGEST_BROKERS"); v != "" {
		cfg.Ingest.Brokers = splitList(v)
	}
	if v := os.Getenv("BEDCAST_INGEST_TOPIC"); v != "" {
		cfg.Ingest.Topic = v
	}
	if v := os.Getenv("BEDCAST_INGEST_GROUP_ID"); v != "" {
		cfg.Ingest.GroupID = v
	}
	if v := os.Getenv("BEDCAST_MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
	if v := os.Getenv("BEDCAST_AGGREGATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Aggregate.Window = d
		}
	}
	if v := os.Getenv("BEDCAST_AGGREGATE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Aggregate.Timeout = d
		}
	}
	if v := os.Getenv("BEDCAST_AGGREGATE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Aggregate.TTL = d
		}
	}
	if v := os.Getenv("BEDCAST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BEDCAST_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("BEDCAST_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTruthy(v)
	}
	if v := os.Getenv("BEDCAST_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("BEDCAST_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("BEDCAST_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("BEDCAST_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("BEDCAST_CACHE_TLS"); isTruthy(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("BEDCAST_CACHE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DialTimeout = d
		}
	}
	if v := os.Getenv("BEDCAST_CACHE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReadTimeout = d
		}
	}
	if v := os.Getenv("BEDCAST_CACHE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WriteTimeout = d
		}
	}
}

func isTruthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
