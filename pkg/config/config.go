// Package config loads swarmroll settings from SWARMROLL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vrischmann/envconfig"
)

// Store drivers
const (
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Image stores
const (
	ImageStoreDocker     = "docker"
	ImageStoreContainerd = "containerd"
)

// Config holds every setting of the controller and CLI
type Config struct {
	ListenAddr      string `envconfig:"SWARMROLL_LISTEN_ADDR,default=:8080"`
	ServerURL       string `envconfig:"SWARMROLL_SERVER_URL,default=http://localhost:8080"`
	SignatureSecret string `envconfig:"SWARMROLL_SIGNATURE_SECRET,optional"`

	StoreDriver string `envconfig:"SWARMROLL_STORE,default=bolt"`
	DataDir     string `envconfig:"SWARMROLL_DATA_DIR,default=/var/lib/swarmroll"`
	PostgresDSN string `envconfig:"SWARMROLL_POSTGRES_DSN,optional"`

	DockerHost          string `envconfig:"SWARMROLL_DOCKER_HOST,optional"`
	RegistryAuth        string `envconfig:"SWARMROLL_REGISTRY_AUTH,optional"`
	ImageStore          string `envconfig:"SWARMROLL_IMAGE_STORE,default=docker"`
	ContainerdSocket    string `envconfig:"SWARMROLL_CONTAINERD_SOCKET,default=/run/containerd/containerd.sock"`
	ContainerdNamespace string `envconfig:"SWARMROLL_CONTAINERD_NAMESPACE,default=moby"`

	PollInterval  time.Duration `envconfig:"SWARMROLL_POLL_INTERVAL,default=1s"`
	UpdateTimeout time.Duration `envconfig:"SWARMROLL_UPDATE_TIMEOUT,default=10m"`
	DrainTimeout  time.Duration `envconfig:"SWARMROLL_DRAIN_TIMEOUT,default=30m"`

	WebhookRate  float64 `envconfig:"SWARMROLL_WEBHOOK_RATE,default=1"`
	WebhookBurst int     `envconfig:"SWARMROLL_WEBHOOK_BURST,default=5"`

	KafkaBrokers []string `envconfig:"SWARMROLL_KAFKA_BROKERS,optional"`
	KafkaTopic   string   `envconfig:"SWARMROLL_KAFKA_TOPIC,default=swarmroll.events"`

	MetricsInterval time.Duration `envconfig:"SWARMROLL_METRICS_INTERVAL,default=15s"`

	LogLevel string `envconfig:"SWARMROLL_LOG_LEVEL,default=info"`
	LogJSON  bool   `envconfig:"SWARMROLL_LOG_JSON,default=false"`
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Init(cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings shared by every command
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreBolt:
		if c.DataDir == "" {
			errs = append(errs, errors.New("data dir is required for the bolt store"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres DSN is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q (want %s or %s)", c.StoreDriver, StoreBolt, StorePostgres))
	}

	switch c.ImageStore {
	case ImageStoreDocker:
	case ImageStoreContainerd:
		if c.ContainerdSocket == "" {
			errs = append(errs, errors.New("containerd socket is required for the containerd image store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown image store %q (want %s or %s)", c.ImageStore, ImageStoreDocker, ImageStoreContainerd))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %v", c.PollInterval))
	}
	if c.UpdateTimeout < c.PollInterval {
		errs = append(errs, fmt.Errorf("update timeout %v is shorter than the poll interval %v", c.UpdateTimeout, c.PollInterval))
	}
	if c.DrainTimeout <= 0 {
		errs = append(errs, fmt.Errorf("drain timeout must be positive, got %v", c.DrainTimeout))
	}
	if c.MetricsInterval <= 0 {
		errs = append(errs, fmt.Errorf("metrics interval must be positive, got %v", c.MetricsInterval))
	}

	return errors.Join(errs...)
}

// ValidateServer additionally checks the settings the webhook server needs
func (c *Config) ValidateServer() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SignatureSecret == "" {
		errs = append(errs, errors.New("signature secret is required (SWARMROLL_SIGNATURE_SECRET)"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.WebhookRate <= 0 || c.WebhookBurst <= 0 {
		errs = append(errs, fmt.Errorf("webhook rate limit must be positive, got %v/s burst %d", c.WebhookRate, c.WebhookBurst))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka topic is required when kafka brokers are set"))
	}
	return errors.Join(errs...)
}
