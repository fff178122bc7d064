package critwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Tap30/critwatch/adapters"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "CRITWATCH_"

// S3Config selects an S3 object as the dump destination.
type S3Config struct {
	Bucket   string `yaml:"bucket" env:"BUCKET"`
	Key      string `yaml:"key" env:"KEY"`
	Region   string `yaml:"region" env:"REGION"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// Config is the agent configuration. Values come from DefaultConfig, then an
// optional YAML file, then CRITWATCH_* environment variables.
type Config struct {
	Name               string            `yaml:"name" env:"NAME"`
	MaxSize            int64             `yaml:"max_size" env:"MAX_SIZE"`
	ChunkSize          int               `yaml:"chunk_size" env:"CHUNK_SIZE"`
	Destination        string            `yaml:"destination" env:"DESTINATION"`
	UploadURL          string            `yaml:"upload_url" env:"UPLOAD_URL"`
	UploadHeaders      map[string]string `yaml:"upload_headers" env:"UPLOAD_HEADERS"`
	S3                 S3Config          `yaml:"s3" envPrefix:"S3_"`
	CheckpointInterval time.Duration     `yaml:"checkpoint_interval" env:"CHECKPOINT_INTERVAL"`
	MaxRetries         int               `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBackoff       time.Duration     `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	LogLevel           string            `yaml:"log_level" env:"LOG_LEVEL"`
	Labels             map[string]string `yaml:"labels" env:"LABELS"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Name:               "critwatch",
		MaxSize:            64 << 20,
		ChunkSize:          DefaultChunkSize,
		Destination:        "critwatch.crw",
		CheckpointInterval: 30 * time.Second,
		MaxRetries:         3,
		RetryBackoff:       DefaultRetryBackoff,
		LogLevel:           "warn",
	}
}

// LoadConfig applies environment overrides to DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile reads the YAML file at path over DefaultConfig and then
// applies environment overrides.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config %q: %w", path, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.MaxSize < 0:
		return errors.New("config: max_size cannot be negative")
	case c.ChunkSize < 0:
		return errors.New("config: chunk_size cannot be negative")
	case c.CheckpointInterval < 0:
		return errors.New("config: checkpoint_interval cannot be negative")
	case c.MaxRetries < 0:
		return errors.New("config: max_retries cannot be negative")
	case c.RetryBackoff < 0:
		return errors.New("config: retry_backoff cannot be negative")
	case c.S3.Bucket != "" && c.S3.Key == "":
		return errors.New("config: s3.key is required with s3.bucket")
	case c.S3.Bucket == "" && c.UploadURL == "" && c.Destination == "":
		return errors.New("config: one of s3.bucket, upload_url or destination is required")
	}
	for k := range c.Labels {
		if k == "" || len(k) > maxLabelKeyLength {
			return fmt.Errorf("config: invalid label key %q", k)
		}
	}
	return nil
}

// Storage builds the configured destination. S3 wins over an upload URL,
// which wins over a local file.
func (c Config) Storage(ctx context.Context) (StorageAdapter, error) {
	switch {
	case c.S3.Bucket != "":
		return adapters.NewS3StorageAdapter(ctx, adapters.S3StorageConfig{
			Bucket:   c.S3.Bucket,
			Key:      c.S3.Key,
			Region:   c.S3.Region,
			Endpoint: c.S3.Endpoint,
		})
	case c.UploadURL != "":
		return adapters.NewHTTPStorageAdapter(c.UploadURL, c.UploadHeaders), nil
	case c.Destination != "":
		return adapters.NewFileStorageAdapter(c.Destination), nil
	}
	return nil, errors.New("config: no destination configured")
}

// Logger returns a slog-backed logger writing text to stderr at LogLevel.
func (c Config) Logger() LoggerAdapter {
	level := adapters.SlogLevel(adapters.ParseLogLevel(c.LogLevel))
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return adapters.NewSlogLoggerAdapter(slog.New(handler))
}

// ReporterConfig maps the configuration onto a ReporterConfig writing to
// storage.
func (c Config) ReporterConfig(storage StorageAdapter) ReporterConfig {
	return ReporterConfig{
		Name:               c.Name,
		MaxSize:            c.MaxSize,
		ChunkSize:          c.ChunkSize,
		CheckpointInterval: c.CheckpointInterval,
		MaxRetries:         c.MaxRetries,
		RetryBackoff:       c.RetryBackoff,
		Labels:             c.Labels,
		StorageAdapter:     storage,
		LoggerAdapter:      c.Logger(),
	}
}
