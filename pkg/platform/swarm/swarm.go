package swarm

import (
	"context"
	"fmt"
	"io"

	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/types"
	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	dockerswarm "github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rs/zerolog"
)

// Swarm implements platform.Platform against a Docker Swarm manager.
// Images are resolved, tagged and pulled in the local docker image store.
type Swarm struct {
	client       client.APIClient
	registryAuth string
	logger       zerolog.Logger
}

// Option configures a Swarm
type Option func(*Swarm)

// WithRegistryAuth sets the base64 encoded auth config sent with pulls
func WithRegistryAuth(encoded string) Option {
	return func(s *Swarm) {
		s.registryAuth = encoded
	}
}

// NewSwarm connects to the docker daemon at host, or the DOCKER_HOST
// environment when host is empty
func NewSwarm(host string, opts ...Option) (*Swarm, error) {
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		clientOpts = append(clientOpts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return NewWithClient(cli, opts...), nil
}

// NewWithClient wraps an existing docker API client
func NewWithClient(cli client.APIClient, opts ...Option) *Swarm {
	s := &Swarm{
		client: cli,
		logger: log.WithComponent("swarm"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the docker client connection
func (s *Swarm) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Ping checks the daemon is reachable
func (s *Swarm) Ping(ctx context.Context) error {
	if _, err := s.client.Ping(ctx); err != nil {
		return platform.Wrap("ping", err)
	}
	return nil
}

// ListServices returns all swarm services in the order the manager lists them
func (s *Swarm) ListServices(ctx context.Context) ([]types.PlatformService, error) {
	services, err := s.client.ServiceList(ctx, dockertypes.ServiceListOptions{})
	if err != nil {
		return nil, platform.Wrap("list services", err)
	}

	result := make([]types.PlatformService, 0, len(services))
	for _, svc := range services {
		result = append(result, toPlatformService(svc))
	}
	return result, nil
}

// InspectService reloads a service by name or ID
func (s *Swarm) InspectService(ctx context.Context, name string) (types.PlatformService, error) {
	svc, _, err := s.client.ServiceInspectWithRaw(ctx, name, dockertypes.ServiceInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return types.PlatformService{}, fmt.Errorf("%w: %s", platform.ErrServiceNotFound, name)
		}
		return types.PlatformService{}, platform.Wrap("inspect service", err)
	}
	return toPlatformService(svc), nil
}

// UpdateService sets the service image. With force the task template's
// ForceUpdate counter is bumped so tasks restart even for an unchanged image.
func (s *Swarm) UpdateService(ctx context.Context, name, img string, force bool) error {
	svc, _, err := s.client.ServiceInspectWithRaw(ctx, name, dockertypes.ServiceInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", platform.ErrServiceNotFound, name)
		}
		return platform.Wrap("inspect service", err)
	}

	spec := svc.Spec
	if spec.TaskTemplate.ContainerSpec == nil {
		return platform.Wrap("update service", fmt.Errorf("service %s has no container spec", name))
	}
	spec.TaskTemplate.ContainerSpec.Image = img
	if force {
		spec.TaskTemplate.ForceUpdate++
	}

	resp, err := s.client.ServiceUpdate(ctx, svc.ID, svc.Version, spec, dockertypes.ServiceUpdateOptions{})
	if err != nil {
		return platform.Wrap("update service", err)
	}
	for _, warning := range resp.Warnings {
		s.logger.Warn().Str("service", name).Msg(warning)
	}
	return nil
}

// GetImage resolves a local image reference to its ID
func (s *Swarm) GetImage(ctx context.Context, ref string) (string, error) {
	inspect, _, err := s.client.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", platform.ErrImageNotFound, ref)
		}
		return "", platform.Wrap("inspect image", err)
	}
	return inspect.ID, nil
}

// TagImage adds target as a reference to the local image source
func (s *Swarm) TagImage(ctx context.Context, source, target string) error {
	if err := s.client.ImageTag(ctx, source, target); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", platform.ErrImageNotFound, source)
		}
		return platform.Wrap("tag image", err)
	}
	return nil
}

// PullImage pulls ref and waits for the pull to finish
func (s *Swarm) PullImage(ctx context.Context, ref string) error {
	rc, err := s.client.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: s.registryAuth})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", platform.ErrImageNotFound, ref)
		}
		return platform.Wrap("pull image", err)
	}
	defer rc.Close()

	// Pull errors after the request is accepted only show up in the progress stream
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return platform.Wrap("pull image", fmt.Errorf("%s: %w", ref, err))
	}
	return nil
}

func toPlatformService(svc dockerswarm.Service) types.PlatformService {
	ps := types.PlatformService{
		ID:        svc.ID,
		Name:      svc.Spec.Name,
		UpdatedAt: svc.UpdatedAt,
	}
	if svc.Spec.TaskTemplate.ContainerSpec != nil {
		ps.Image = svc.Spec.TaskTemplate.ContainerSpec.Image
	}
	// Meta.UpdatedAt moves as soon as the spec is written, before the
	// orchestrator starts rolling tasks; StartedAt marks the rollout itself.
	if status := svc.UpdateStatus; status != nil {
		ps.UpdateState = types.UpdateState(status.State)
		ps.UpdateMessage = status.Message
		if status.StartedAt != nil {
			ps.UpdatedAt = *status.StartedAt
		}
	}
	return ps
}
