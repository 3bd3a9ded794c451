package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
portal:
  base_url: https://portal.example.org
  timeout_seconds: 30
solver:
  api_key: solver-key
  site_key: site-key
  page_url: https://portal.example.org/search
auth:
  buffer_size: 4
  refresh_interval_seconds: 300
ingest:
  case_workers: 6
  document_workers: 10
  max_retries: 5
storage:
  sink: postgres
  blobs: gcs
  gcs_bucket: court-docs
db:
  dsn: postgres://localhost/cases
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Portal.BaseURL != "https://portal.example.org" {
		t.Fatalf("expected portal override, got %q", cfg.Portal.BaseURL)
	}
	if cfg.Auth.BufferSize != 4 {
		t.Fatalf("expected buffer size 4, got %d", cfg.Auth.BufferSize)
	}
	if cfg.Ingest.CaseWorkers != 6 || cfg.Ingest.DocumentWorkers != 10 {
		t.Fatalf("expected worker overrides to apply: %+v", cfg.Ingest)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging disabled")
	}
	if got := cfg.PortalTimeout(); got != 30*time.Second {
		t.Fatalf("expected portal timeout 30s, got %v", got)
	}
	if got := cfg.RefreshInterval(); got != 300*time.Second {
		t.Fatalf("expected refresh interval 300s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
solver:
  api_key: solver-key
  site_key: site-key
storage:
  sink: memory
  blobs: memory
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.BufferSize != 2 {
		t.Fatalf("expected default buffer size 2, got %d", cfg.Auth.BufferSize)
	}
	if cfg.RefreshInterval() != 600*time.Second {
		t.Fatalf("expected default refresh 600s, got %v", cfg.RefreshInterval())
	}
	if cfg.Ingest.CaseWorkers != 3 || cfg.Ingest.DocumentWorkers != 5 || cfg.Ingest.MaxRetries != 3 {
		t.Fatalf("expected pipeline defaults: %+v", cfg.Ingest)
	}
	if cfg.RequestTimeout() != 60*time.Second {
		t.Fatalf("expected default request timeout 60s, got %v", cfg.RequestTimeout())
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing solver key",
			mutate:  func(c *Config) { c.Solver.APIKey = "" },
			wantErr: "solver.api_key",
		},
		{
			name:    "missing postgres dsn",
			mutate:  func(c *Config) { c.Storage.Sink = "postgres"; c.DB.DSN = "" },
			wantErr: "db.dsn",
		},
		{
			name:    "missing mongo uri",
			mutate:  func(c *Config) { c.Storage.Sink = "mongo"; c.Mongo.URI = "" },
			wantErr: "mongo.uri",
		},
		{
			name:    "unknown sink",
			mutate:  func(c *Config) { c.Storage.Sink = "oracle" },
			wantErr: "storage.sink",
		},
		{
			name:    "pubsub without topic",
			mutate:  func(c *Config) { c.PubSub.Enabled = true },
			wantErr: "pubsub",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func validConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Portal: PortalConfig{BaseURL: "https://portal.example.org", TimeoutSeconds: 60},
		Solver: SolverConfig{APIKey: "solver-key", SiteKey: "site-key"},
		Auth:   AuthConfig{BufferSize: 2, RefreshIntervalSeconds: 600},
		Ingest: IngestConfig{CaseWorkers: 3, DocumentWorkers: 5, MaxRetries: 3, RequestTimeoutSeconds: 60},
		Storage: StorageConfig{
			Sink:  "memory",
			Blobs: "memory",
		},
	}
}
