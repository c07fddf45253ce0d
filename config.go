package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/bodul/crossword-export/xword"
)

// Config holds the service and CLI configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`

	// Format used when a request or command does not name one.
	DefaultFormat string `yaml:"default_format"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// GeminiConfig enables image analysis when ProjectID is set.
type GeminiConfig struct {
	ProjectID string `yaml:"project_id"`
	Region    string `yaml:"region"`
	Model     string `yaml:"model"`
}

type LimitsConfig struct {
	UploadPerMinute int `yaml:"upload_per_minute"`
	ExportPerSecond int `yaml:"export_per_second"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			MaxUploadBytes:  10 << 20,
			MaxBodyBytes:    2 << 20,
			ShutdownTimeout: "10s",
		},
		Gemini: GeminiConfig{
			Region: defaultRegion,
			Model:  defaultModel,
		},
		Limits: LimitsConfig{
			UploadPerMinute: 5,
			ExportPerSecond: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		DefaultFormat: string(xword.FormatText),
	}
}

// LoadConfig reads a YAML config file over the defaults and applies
// environment overrides. An empty or missing path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if project := os.Getenv("GCP_PROJECT_ID"); project != "" {
		c.Gemini.ProjectID = project
	}
	if region := os.Getenv("GCP_REGION"); region != "" {
		c.Gemini.Region = region
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.Gemini.Model = model
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate rejects values the server could not start with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("config server.port %q: must be a number", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 || c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("config server body limits must be positive")
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("config server.shutdown_timeout: %w", err)
	}
	if c.Limits.UploadPerMinute <= 0 || c.Limits.ExportPerSecond <= 0 {
		return fmt.Errorf("config limits must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("config logging.format %q: want json or console", c.Logging.Format)
	}
	if _, err := xword.ParseFormat(c.DefaultFormat); err != nil {
		return fmt.Errorf("config default_format: %w", err)
	}
	return nil
}

// ShutdownTimeout returns the parsed grace period for in-flight requests.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// Format returns the configured default export format.
func (c *Config) Format() xword.Format {
	f, err := xword.ParseFormat(c.DefaultFormat)
	if err != nil {
		return xword.FormatText
	}
	return f
}
