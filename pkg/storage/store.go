package storage

import (
	"context"
	"errors"

	"github.com/cuemby/swarmroll/pkg/types"
)

var (
	// ErrNotFound is returned when a service is not in the registry
	ErrNotFound = errors.New("service not found")

	// ErrAlreadyExists is returned when creating a service whose name is taken
	ErrAlreadyExists = errors.New("service already exists")
)

// Store is the service registry. Names are unique; listings are ordered by name.
type Store interface {
	CreateService(ctx context.Context, service *types.ServiceRef) error
	GetService(ctx context.Context, name string) (*types.ServiceRef, error)
	ListServices(ctx context.Context) ([]*types.ServiceRef, error)
	UpdateService(ctx context.Context, service *types.ServiceRef) error
	DeleteService(ctx context.Context, name string) error

	// Utility
	Ping(ctx context.Context) error
	Close() error
}
