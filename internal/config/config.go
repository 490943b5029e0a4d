package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for the ckandump CLI.
type Config struct {
	Address   string      `yaml:"address"`
	APIKey    string      `yaml:"api_key"`
	UserAgent string      `yaml:"user_agent"`
	OutputDir string      `yaml:"output_dir"`
	CacheDir  string      `yaml:"cache_dir"`
	ErrorLog  string      `yaml:"error_log"`
	LogFile   string      `yaml:"log_file"`
	Verbose   bool        `yaml:"verbose"`
	MimeTypes []string    `yaml:"mime_types"`
	Groups    []string    `yaml:"groups"`
	HTTP      HTTPConfig  `yaml:"http"`
	Retry     RetryConfig `yaml:"retry"`
}

// HTTPConfig defines transport behavior against the catalog and the
// resource hosts.
type HTTPConfig struct {
	MaxConnections    int           `yaml:"max_connections"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// RetryConfig defines retry behavior for API calls and downloads.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults. The address has no
// default and must be provided.
func Default() Config {
	return Config{
		UserAgent: "ckandump",
		OutputDir: "dump",
		CacheDir:  ".cache",
		ErrorLog:  "errors.log",
		HTTP: HTTPConfig{
			MaxConnections: 5,
			Timeout:        60 * time.Second,
		},
		Retry: RetryConfig{
			Attempts:   10,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Address   string          `yaml:"address"`
	APIKey    string          `yaml:"api_key"`
	UserAgent string          `yaml:"user_agent"`
	OutputDir string          `yaml:"output_dir"`
	CacheDir  string          `yaml:"cache_dir"`
	ErrorLog  string          `yaml:"error_log"`
	LogFile   string          `yaml:"log_file"`
	Verbose   bool            `yaml:"verbose"`
	MimeTypes []string        `yaml:"mime_types"`
	Groups    []string        `yaml:"groups"`
	HTTP      yamlHTTPConfig  `yaml:"http"`
	Retry     yamlRetryConfig `yaml:"retry"`
}

type yamlHTTPConfig struct {
	MaxConnections    int     `yaml:"max_connections"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Timeout           string  `yaml:"timeout"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Address != "" {
		cfg.Address = yc.Address
	}
	if yc.APIKey != "" {
		cfg.APIKey = yc.APIKey
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	if yc.CacheDir != "" {
		cfg.CacheDir = yc.CacheDir
	}
	if yc.ErrorLog != "" {
		cfg.ErrorLog = yc.ErrorLog
	}
	if yc.LogFile != "" {
		cfg.LogFile = yc.LogFile
	}
	cfg.Verbose = yc.Verbose
	if len(yc.MimeTypes) != 0 {
		cfg.MimeTypes = yc.MimeTypes
	}
	if len(yc.Groups) != 0 {
		cfg.Groups = yc.Groups
	}
	if yc.HTTP.MaxConnections != 0 {
		cfg.HTTP.MaxConnections = yc.HTTP.MaxConnections
	}
	if yc.HTTP.RequestsPerSecond != 0 {
		cfg.HTTP.RequestsPerSecond = yc.HTTP.RequestsPerSecond
	}
	if yc.HTTP.Timeout != "" {
		d, err := time.ParseDuration(yc.HTTP.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.timeout: %w", err)
		}
		cfg.HTTP.Timeout = d
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CKANDUMP_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("CKANDUMP_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv("CKANDUMP_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CKANDUMP_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("CKANDUMP_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("CKANDUMP_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("CKANDUMP_ERROR_LOG"); v != "" {
		c.ErrorLog = v
	}
	if v := os.Getenv("CKANDUMP_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("CKANDUMP_VERBOSE"); v != "" {
		c.Verbose = v == "true" || v == "1"
	}
	if v := os.Getenv("CKANDUMP_MIME_TYPES"); v != "" {
		c.MimeTypes = splitList(v)
	}
	if v := os.Getenv("CKANDUMP_GROUPS"); v != "" {
		c.Groups = splitList(v)
	}
	if v := os.Getenv("CKANDUMP_MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CKANDUMP_MAX_CONNECTIONS: %w", err)
		}
		c.HTTP.MaxConnections = n
	}
	if v := os.Getenv("CKANDUMP_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse CKANDUMP_REQUESTS_PER_SECOND: %w", err)
		}
		c.HTTP.RequestsPerSecond = f
	}
	if v := os.Getenv("CKANDUMP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CKANDUMP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	if v := os.Getenv("CKANDUMP_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CKANDUMP_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("CKANDUMP_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CKANDUMP_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("CKANDUMP_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CKANDUMP_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("config: address is required")
	}
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	if c.HTTP.MaxConnections <= 0 {
		return errors.New("config: http.max_connections must be positive")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return errors.New("config: http.requests_per_second must not be negative")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
