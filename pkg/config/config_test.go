package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, StoreBolt, cfg.StoreDriver)
	assert.Equal(t, ImageStoreDocker, cfg.ImageStore)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.UpdateTimeout)
	assert.Equal(t, 30*time.Minute, cfg.DrainTimeout)
	assert.Equal(t, "moby", cfg.ContainerdNamespace)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.SignatureSecret)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SWARMROLL_SIGNATURE_SECRET", "s3cr3t")
	t.Setenv("SWARMROLL_STORE", "postgres")
	t.Setenv("SWARMROLL_POSTGRES_DSN", "postgres://swarmroll@db/swarmroll")
	t.Setenv("SWARMROLL_POLL_INTERVAL", "250ms")
	t.Setenv("SWARMROLL_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("SWARMROLL_LOG_JSON", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cr3t", cfg.SignatureSecret)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.LogJSON)
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("SWARMROLL_UPDATE_TIMEOUT", "forever")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ListenAddr:       ":8080",
			SignatureSecret:  "s3cr3t",
			StoreDriver:      StoreBolt,
			DataDir:          "/var/lib/swarmroll",
			ImageStore:       ImageStoreDocker,
			ContainerdSocket: "/run/containerd/containerd.sock",
			PollInterval:     time.Second,
			UpdateTimeout:    time.Minute,
			DrainTimeout:     time.Hour,
			MetricsInterval:  15 * time.Second,
			WebhookRate:      1,
			WebhookBurst:     5,
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   string
		serverErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.StoreDriver = "sqlite" },
			wantErr: `unknown store driver "sqlite"`,
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StoreDriver = StorePostgres },
			wantErr: "postgres DSN is required",
		},
		{
			name:    "unknown image store",
			mutate:  func(c *Config) { c.ImageStore = "podman" },
			wantErr: `unknown image store "podman"`,
		},
		{
			name:    "non-positive poll interval",
			mutate:  func(c *Config) { c.PollInterval = 0 },
			wantErr: "poll interval must be positive",
		},
		{
			name:    "timeout shorter than interval",
			mutate:  func(c *Config) { c.UpdateTimeout = time.Millisecond },
			wantErr: "shorter than the poll interval",
		},
		{
			name:    "non-positive drain timeout",
			mutate:  func(c *Config) { c.DrainTimeout = 0 },
			wantErr: "drain timeout must be positive",
		},
		{
			name:      "missing secret only fails server validation",
			mutate:    func(c *Config) { c.SignatureSecret = "" },
			serverErr: "signature secret is required",
		},
		{
			name:      "zero rate limit",
			mutate:    func(c *Config) { c.WebhookBurst = 0 },
			serverErr: "webhook rate limit must be positive",
		},
		{
			name: "kafka without topic",
			mutate: func(c *Config) {
				c.KafkaBrokers = []string{"kafka:9092"}
				c.KafkaTopic = ""
			},
			serverErr: "kafka topic is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.ErrorContains(t, cfg.ValidateServer(), tt.wantErr)
				return
			}
			assert.NoError(t, err)

			if tt.serverErr != "" {
				assert.ErrorContains(t, cfg.ValidateServer(), tt.serverErr)
			} else {
				assert.NoError(t, cfg.ValidateServer())
			}
		})
	}
}
