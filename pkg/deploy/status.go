package deploy

import (
	"context"
	"fmt"

	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/storage"
	"github.com/cuemby/swarmroll/pkg/types"
)

// Statuses lists every registered service, flagging the ones currently
// running on the platform
func Statuses(ctx context.Context, store storage.Store, p platform.ServiceAPI) ([]types.ServiceStatus, error) {
	registered, err := store.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered services: %w", err)
	}
	active, err := p.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active services: %w", err)
	}

	running := make(map[string]bool, len(active))
	for _, svc := range active {
		running[svc.Name] = true
	}

	statuses := make([]types.ServiceStatus, 0, len(registered))
	for _, ref := range registered {
		statuses = append(statuses, types.ServiceStatus{
			ServiceRef: *ref,
			Active:     running[ref.Name],
		})
	}
	return statuses, nil
}
