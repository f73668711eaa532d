package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cuemby/swarmroll/pkg/config"
	"github.com/cuemby/swarmroll/pkg/deploy"
	"github.com/cuemby/swarmroll/pkg/events"
	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/platform/containerd"
	"github.com/cuemby/swarmroll/pkg/platform/swarm"
	"github.com/cuemby/swarmroll/pkg/storage"
	"github.com/cuemby/swarmroll/pkg/updater"
	"github.com/cuemby/swarmroll/pkg/wait"
)

// openStore opens the registry store selected by cfg
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		store, err := storage.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return store, nil
	}
}

// openPlatform connects to the Docker daemon and, when configured, to
// containerd for image operations. The returned closer releases every client.
func openPlatform(cfg *config.Config) (platform.Platform, io.Closer, error) {
	var opts []swarm.Option
	if cfg.RegistryAuth != "" {
		opts = append(opts, swarm.WithRegistryAuth(cfg.RegistryAuth))
	}
	sw, err := swarm.NewSwarm(cfg.DockerHost, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to docker: %w", err)
	}

	if cfg.ImageStore != config.ImageStoreContainerd {
		return sw, sw, nil
	}

	images, err := containerd.NewImageStore(cfg.ContainerdSocket, cfg.ContainerdNamespace)
	if err != nil {
		sw.Close()
		return nil, nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}
	return platform.Compose(sw, images), closers{sw, images}, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, closer := range c {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// newDeployer builds a deployer polling the platform as configured
func newDeployer(cfg *config.Config, store storage.Store, publisher events.Publisher) *deploy.Deployer {
	waiter := wait.NewWaiter(cfg.UpdateTimeout, cfg.PollInterval)
	return deploy.NewDeployer(store, updater.NewUpdater(waiter), publisher)
}
