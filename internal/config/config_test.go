package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.OutputDir != "dump" {
		t.Errorf("expected default output dir dump, got %s", cfg.OutputDir)
	}
	if cfg.CacheDir != ".cache" {
		t.Errorf("expected default cache dir .cache, got %s", cfg.CacheDir)
	}
	if cfg.ErrorLog != "errors.log" {
		t.Errorf("expected default error log errors.log, got %s", cfg.ErrorLog)
	}
	if cfg.HTTP.MaxConnections != 5 {
		t.Errorf("expected default max connections 5, got %d", cfg.HTTP.MaxConnections)
	}
	if cfg.HTTP.Timeout != 60*time.Second {
		t.Errorf("expected default timeout 60s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Retry.Attempts != 10 {
		t.Errorf("expected default retry attempts 10, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != time.Second {
		t.Errorf("expected default retry backoff 1s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 30*time.Second {
		t.Errorf("expected default retry max backoff 30s, got %v", cfg.Retry.MaxBackoff)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
address: https://catalog.example.org
api_key: secret
output_dir: data
groups:
  - budget
  - spending
mime_types:
  - text/csv
http:
  max_connections: 8
  requests_per_second: 2.5
  timeout: 90s
retry:
  attempts: 3
  backoff: 2s
  max_backoff: 60s
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Address != "https://catalog.example.org" {
		t.Errorf("expected address, got %s", cfg.Address)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("expected api key, got %s", cfg.APIKey)
	}
	if cfg.OutputDir != "data" {
		t.Errorf("expected output dir data, got %s", cfg.OutputDir)
	}
	// Unset fields keep their defaults.
	if cfg.CacheDir != ".cache" {
		t.Errorf("expected default cache dir, got %s", cfg.CacheDir)
	}
	if !reflect.DeepEqual(cfg.Groups, []string{"budget", "spending"}) {
		t.Errorf("expected groups, got %v", cfg.Groups)
	}
	if !reflect.DeepEqual(cfg.MimeTypes, []string{"text/csv"}) {
		t.Errorf("expected mime types, got %v", cfg.MimeTypes)
	}
	if cfg.HTTP.MaxConnections != 8 {
		t.Errorf("expected max connections 8, got %d", cfg.HTTP.MaxConnections)
	}
	if cfg.HTTP.RequestsPerSecond != 2.5 {
		t.Errorf("expected requests per second 2.5, got %v", cfg.HTTP.RequestsPerSecond)
	}
	if cfg.HTTP.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("expected retry attempts 3, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 60*time.Second {
		t.Errorf("expected retry max backoff 60s, got %v", cfg.Retry.MaxBackoff)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CKANDUMP_ADDRESS", "https://env.example.org")
	t.Setenv("CKANDUMP_API_KEY", "env-key")
	t.Setenv("CKANDUMP_GROUPS", "budget, spending ,")
	t.Setenv("CKANDUMP_MAX_CONNECTIONS", "12")
	t.Setenv("CKANDUMP_REQUESTS_PER_SECOND", "1.5")
	t.Setenv("CKANDUMP_TIMEOUT", "30s")
	t.Setenv("CKANDUMP_RETRY_ATTEMPTS", "4")
	t.Setenv("CKANDUMP_RETRY_BACKOFF", "500ms")
	t.Setenv("CKANDUMP_VERBOSE", "1")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Address != "https://env.example.org" {
		t.Errorf("expected address, got %s", cfg.Address)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("expected api key, got %s", cfg.APIKey)
	}
	if !reflect.DeepEqual(cfg.Groups, []string{"budget", "spending"}) {
		t.Errorf("expected groups, got %v", cfg.Groups)
	}
	if cfg.HTTP.MaxConnections != 12 {
		t.Errorf("expected max connections 12, got %d", cfg.HTTP.MaxConnections)
	}
	if cfg.HTTP.RequestsPerSecond != 1.5 {
		t.Errorf("expected requests per second 1.5, got %v", cfg.HTTP.RequestsPerSecond)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Retry.Attempts != 4 {
		t.Errorf("expected retry attempts 4, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("expected retry backoff 500ms, got %v", cfg.Retry.Backoff)
	}
	if !cfg.Verbose {
		t.Error("expected verbose true")
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("CKANDUMP_MAX_CONNECTIONS", "many")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid CKANDUMP_MAX_CONNECTIONS")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Address = "https://catalog.example.org"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing address", func(c *Config) { c.Address = "" }, true},
		{"missing output dir", func(c *Config) { c.OutputDir = "" }, true},
		{"invalid max connections", func(c *Config) { c.HTTP.MaxConnections = 0 }, true},
		{"negative rate", func(c *Config) { c.HTTP.RequestsPerSecond = -1 }, true},
		{"invalid retry attempts", func(c *Config) { c.Retry.Attempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadYAMLBadDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("retry:\n  backoff: soon\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for bad duration")
	}
}
