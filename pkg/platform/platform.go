package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/swarmroll/pkg/types"
)

var (
	// ErrImageNotFound is returned when an image is missing locally or in the registry
	ErrImageNotFound = errors.New("image not found")

	// ErrServiceNotFound is returned when a service is not running on the platform
	ErrServiceNotFound = errors.New("service not found")
)

// APIError wraps a transport or API failure reported by the platform
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform %s failed: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Wrap returns err as an *APIError for op, leaving nil and
// not-found errors untouched so callers can still match them.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrImageNotFound) || errors.Is(err, ErrServiceNotFound) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return &APIError{Op: op, Err: err}
}

// ServiceAPI is the service half of an orchestration platform
type ServiceAPI interface {
	// ListServices returns the active services in platform listing order
	ListServices(ctx context.Context) ([]types.PlatformService, error)

	// UpdateService points a service at image; force restarts its tasks even
	// when the image reference is unchanged
	UpdateService(ctx context.Context, name, image string, force bool) error

	// InspectService reloads the current state of a service
	InspectService(ctx context.Context, name string) (types.PlatformService, error)
}

// ImageStore is the image half of an orchestration platform
type ImageStore interface {
	// GetImage resolves a local image reference to its ID
	GetImage(ctx context.Context, ref string) (string, error)

	// TagImage adds target as a new reference to the local image source
	TagImage(ctx context.Context, source, target string) error

	// PullImage fetches ref from its registry
	PullImage(ctx context.Context, ref string) error
}

// Platform is everything the rollout needs from the orchestration platform
type Platform interface {
	ServiceAPI
	ImageStore

	// Ping checks connectivity
	Ping(ctx context.Context) error
}

// Pinger is implemented by components that can check their connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

type composed struct {
	ServiceAPI
	ImageStore
}

// Compose builds a Platform from a service API and a separate image store.
// Ping checks every half that implements Pinger.
func Compose(services ServiceAPI, images ImageStore) Platform {
	return &composed{ServiceAPI: services, ImageStore: images}
}

func (c *composed) Ping(ctx context.Context) error {
	if p, ok := c.ServiceAPI.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("service api: %w", err)
		}
	}
	if p, ok := c.ImageStore.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("image store: %w", err)
		}
	}
	return nil
}
