package critwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tap30/critwatch/adapters"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CRITWATCH_NAME", "svc")
	t.Setenv("CRITWATCH_MAX_SIZE", "1024")
	t.Setenv("CRITWATCH_CHECKPOINT_INTERVAL", "1m")
	t.Setenv("CRITWATCH_LABELS", "host:a,zone:b")
	t.Setenv("CRITWATCH_S3_BUCKET", "telemetry")
	t.Setenv("CRITWATCH_S3_KEY", "svc.crw")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "svc", cfg.Name)
	require.Equal(t, int64(1024), cfg.MaxSize)
	require.Equal(t, time.Minute, cfg.CheckpointInterval)
	require.Equal(t, map[string]string{"host": "a", "zone": "b"}, cfg.Labels)
	require.Equal(t, "telemetry", cfg.S3.Bucket)
	require.Equal(t, "svc.crw", cfg.S3.Key)
	require.Equal(t, 3, cfg.MaxRetries, "unset values keep their defaults")
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	t.Setenv("CRITWATCH_MAX_SIZE", "lots")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "critwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from-file
max_size: 2048
chunk_size: 64
upload_url: https://collector.example.com/recordings/app.crw
upload_headers:
  Authorization: Bearer token
retry_backoff: 250ms
log_level: debug
labels:
  env: staging
`), 0o644))

	t.Setenv("CRITWATCH_CHUNK_SIZE", "128")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Name)
	require.Equal(t, int64(2048), cfg.MaxSize)
	require.Equal(t, 128, cfg.ChunkSize, "environment wins over the file")
	require.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)
	require.Equal(t, map[string]string{"env": "staging"}, cfg.Labels)

	storage, err := cfg.Storage(context.Background())
	require.NoError(t, err)
	require.IsType(t, &adapters.HTTPStorageAdapter{}, storage)
	require.Equal(t, "https://collector.example.com/recordings/app.crw", storage.Location())

	rc := cfg.ReporterConfig(storage)
	require.Equal(t, "from-file", rc.Name)
	require.Equal(t, 128, rc.ChunkSize)
	require.Same(t, storage, rc.StorageAdapter)
	require.NotNil(t, rc.LoggerAdapter)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_key: 1\n"), 0o644))
	_, err = LoadConfigFile(path)
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	cfg, err := LoadConfigFile(empty)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_Validate(t *testing.T) {
	mutate := map[string]func(*Config){
		"negative max size":   func(c *Config) { c.MaxSize = -1 },
		"negative chunk size": func(c *Config) { c.ChunkSize = -1 },
		"negative interval":   func(c *Config) { c.CheckpointInterval = -time.Second },
		"negative retries":    func(c *Config) { c.MaxRetries = -1 },
		"negative backoff":    func(c *Config) { c.RetryBackoff = -time.Second },
		"bucket without key":  func(c *Config) { c.S3.Bucket = "b" },
		"no destination":      func(c *Config) { c.Destination = "" },
		"empty label key":     func(c *Config) { c.Labels = map[string]string{"": "x"} },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			fn(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Storage(t *testing.T) {
	cfg := DefaultConfig()
	storage, err := cfg.Storage(context.Background())
	require.NoError(t, err)
	require.IsType(t, &adapters.FileStorageAdapter{}, storage)
	require.Equal(t, "critwatch.crw", storage.Location())

	cfg.Destination = ""
	_, err = cfg.Storage(context.Background())
	require.Error(t, err)
}
