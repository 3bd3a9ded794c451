// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Solver   SolverConfig   `mapstructure:"solver"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// PortalConfig points at the court records portal.
type PortalConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	ProxyURL       string `mapstructure:"proxy_url"`
	UserAgent      string `mapstructure:"user_agent"`
}

// SolverConfig configures the external challenge solving service.
type SolverConfig struct {
	APIURL              string `mapstructure:"api_url"`
	APIKey              string `mapstructure:"api_key"`
	SiteKey             string `mapstructure:"site_key"`
	PageURL             string `mapstructure:"page_url"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
}

// AuthConfig governs challenge buffering and credential rotation.
type AuthConfig struct {
	BufferSize             int `mapstructure:"buffer_size"`
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds"`
	SolveRetrySeconds      int `mapstructure:"solve_retry_seconds"`
	TakeTimeoutSeconds     int `mapstructure:"take_timeout_seconds"`
}

// IngestConfig governs the ingestion pipeline.
type IngestConfig struct {
	CaseWorkers           int `mapstructure:"case_workers"`
	DocumentWorkers       int `mapstructure:"document_workers"`
	MaxRetries            int `mapstructure:"max_retries"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	BackoffInitialMs      int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs          int `mapstructure:"backoff_max_ms"`
}

// StorageConfig selects the record sink and blob store backends.
type StorageConfig struct {
	Sink         string `mapstructure:"sink"`
	Blobs        string `mapstructure:"blobs"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	LocalBaseDir string `mapstructure:"local_base_dir"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// MongoConfig controls access to MongoDB.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// PubSubConfig holds metadata for completion event publishing.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig controls progress reporting sinks.
type ProgressConfig struct {
	JournalPath string `mapstructure:"journal_path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CASEHARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("portal.base_url", "https://portal.scscourt.org")
	v.SetDefault("portal.timeout_seconds", 60)
	v.SetDefault("solver.poll_interval_seconds", 3)
	v.SetDefault("solver.timeout_seconds", 120)
	v.SetDefault("auth.buffer_size", 2)
	v.SetDefault("auth.refresh_interval_seconds", 600)
	v.SetDefault("auth.solve_retry_seconds", 10)
	v.SetDefault("auth.take_timeout_seconds", 60)
	v.SetDefault("ingest.case_workers", 3)
	v.SetDefault("ingest.document_workers", 5)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.request_timeout_seconds", 60)
	v.SetDefault("ingest.backoff_initial_ms", 2000)
	v.SetDefault("ingest.backoff_max_ms", 20000)
	v.SetDefault("storage.sink", "postgres")
	v.SetDefault("storage.blobs", "gcs")
	v.SetDefault("mongo.database", "caseharvester")
	v.SetDefault("mongo.collection", "cases")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if c.Ingest.CaseWorkers <= 0 {
		return fmt.Errorf("ingest.case_workers must be > 0")
	}
	if c.Ingest.DocumentWorkers <= 0 {
		return fmt.Errorf("ingest.document_workers must be > 0")
	}
	if c.Auth.BufferSize <= 0 {
		return fmt.Errorf("auth.buffer_size must be > 0")
	}
	if c.Solver.APIKey == "" {
		return fmt.Errorf("solver.api_key is required")
	}
	if c.Solver.SiteKey == "" {
		return fmt.Errorf("solver.site_key is required")
	}
	switch c.Storage.Sink {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required when storage.sink is postgres")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri is required when storage.sink is mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.sink must be postgres, mongo, or memory")
	}
	switch c.Storage.Blobs {
	case "gcs":
		if c.Storage.Sink == "postgres" && c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required when storage.blobs is gcs")
		}
	case "local":
		if c.Storage.Sink == "postgres" && c.Storage.LocalBaseDir == "" {
			return fmt.Errorf("storage.local_base_dir is required when storage.blobs is local")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.blobs must be gcs, local, or memory")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required when pubsub is enabled")
	}
	return nil
}

// PortalTimeout returns the portal request timeout as a duration.
func (c Config) PortalTimeout() time.Duration {
	return time.Duration(c.Portal.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-call ingestion timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Ingest.RequestTimeoutSeconds) * time.Second
}

// RefreshInterval returns the credential refresh interval as a duration.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Auth.RefreshIntervalSeconds) * time.Second
}
