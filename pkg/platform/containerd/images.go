package containerd

import (
	"context"
	"fmt"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/cuemby/swarmroll/pkg/image"
	"github.com/cuemby/swarmroll/pkg/platform"
)

const (
	// DefaultNamespace is the namespace dockerd uses when its containerd
	// image store is enabled, so tags written here are visible to swarm
	DefaultNamespace = "moby"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ImageStore implements platform.ImageStore using containerd
type ImageStore struct {
	client    *containerd.Client
	namespace string
}

// NewImageStore connects to the containerd socket at socketPath
func NewImageStore(socketPath, namespace string) (*ImageStore, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ImageStore{
		client:    client,
		namespace: namespace,
	}, nil
}

// Close closes the containerd client connection
func (s *ImageStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Ping checks containerd is serving
func (s *ImageStore) Ping(ctx context.Context) error {
	serving, err := s.client.IsServing(ctx)
	if err != nil {
		return platform.Wrap("ping containerd", err)
	}
	if !serving {
		return platform.Wrap("ping containerd", fmt.Errorf("containerd is not serving"))
	}
	return nil
}

// GetImage resolves ref to the digest of its target manifest
func (s *ImageStore) GetImage(ctx context.Context, ref string) (string, error) {
	ctx = namespaces.WithNamespace(ctx, s.namespace)

	img, err := s.client.GetImage(ctx, image.Qualify(ref))
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", platform.ErrImageNotFound, ref)
		}
		return "", platform.Wrap("get image", err)
	}
	return img.Target().Digest.String(), nil
}

// TagImage creates or moves target to point at the same content as source
func (s *ImageStore) TagImage(ctx context.Context, source, target string) error {
	ctx = namespaces.WithNamespace(ctx, s.namespace)
	store := s.client.ImageService()

	img, err := store.Get(ctx, image.Qualify(source))
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", platform.ErrImageNotFound, source)
		}
		return platform.Wrap("tag image", err)
	}

	img.Name = image.Qualify(target)
	if _, err := store.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return platform.Wrap("tag image", err)
		}
		// Existing tag from an earlier rollout: repoint it
		if _, err := store.Update(ctx, img, "target"); err != nil {
			return platform.Wrap("tag image", err)
		}
	}
	return nil
}

// PullImage pulls and unpacks ref
func (s *ImageStore) PullImage(ctx context.Context, ref string) error {
	ctx = namespaces.WithNamespace(ctx, s.namespace)

	if _, err := s.client.Pull(ctx, image.Qualify(ref), containerd.WithPullUnpack); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", platform.ErrImageNotFound, ref)
		}
		return platform.Wrap("pull image", fmt.Errorf("%s: %w", ref, err))
	}
	return nil
}

var _ platform.ImageStore = (*ImageStore)(nil)
