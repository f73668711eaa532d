// Package fake provides an in-memory platform.Platform. Service updates
// converge over a configurable number of inspections, and failures can be
// scripted per service and image.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/types"
)

// Update records one UpdateService call
type Update struct {
	Service string
	Image   string
	Force   bool
}

type pending struct {
	image   string
	polls   int
	started bool
}

// Platform is an in-memory orchestration platform
type Platform struct {
	mu sync.Mutex

	order    []string
	services map[string]*types.PlatformService
	pending  map[string]*pending

	local    map[string]string // ref -> image ID
	registry map[string]bool

	polls       int
	terminal    map[string]types.UpdateState
	stuck       map[string]bool
	updateErrs  map[string]error
	inspectErrs map[string]error
	pullErrs    map[string]error
	listErr     error
	pingErr     error

	updates     []Update
	pulls       []string
	tags        []string
	lookups     []string
	nextImageID int
}

// New creates a platform running services in the given listing order
func New(services ...types.PlatformService) *Platform {
	p := &Platform{
		services:    make(map[string]*types.PlatformService),
		pending:     make(map[string]*pending),
		local:       make(map[string]string),
		registry:    make(map[string]bool),
		terminal:    make(map[string]types.UpdateState),
		stuck:       make(map[string]bool),
		updateErrs:  make(map[string]error),
		inspectErrs: make(map[string]error),
		pullErrs:    make(map[string]error),
		polls:       1,
	}
	for i := range services {
		svc := services[i]
		p.order = append(p.order, svc.Name)
		p.services[svc.Name] = &svc
	}
	return p
}

func key(service, image string) string {
	return service + "|" + image
}

// AddLocalImages makes refs resolvable through GetImage
func (p *Platform) AddLocalImages(refs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ref := range refs {
		p.nextImageID++
		p.local[ref] = fmt.Sprintf("sha256:%064d", p.nextImageID)
	}
}

// AddRegistryImages makes refs pullable
func (p *Platform) AddRegistryImages(refs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ref := range refs {
		p.registry[ref] = true
	}
}

// SetConvergencePolls sets how many inspections report "updating" before the terminal state
func (p *Platform) SetConvergencePolls(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls = n
}

// SetTerminalState makes updating service to image finish in state instead of completed
func (p *Platform) SetTerminalState(service, image string, state types.UpdateState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminal[key(service, image)] = state
}

// SetStuck makes updating service to image never leave the updating phase
func (p *Platform) SetStuck(service, image string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stuck[key(service, image)] = true
}

// SetUpdateError makes UpdateService(service, image) fail with err
func (p *Platform) SetUpdateError(service, image string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateErrs[key(service, image)] = err
}

// SetInspectError makes InspectService(service) fail with err
func (p *Platform) SetInspectError(service string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inspectErrs[service] = err
}

// SetPullError makes PullImage(ref) fail with err
func (p *Platform) SetPullError(ref string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pullErrs[ref] = err
}

// SetListError makes ListServices fail with err
func (p *Platform) SetListError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

// SetPingError makes Ping fail with err
func (p *Platform) SetPingError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingErr = err
}

// Ping implements platform.Platform
func (p *Platform) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pingErr
}

// ListServices implements platform.ServiceAPI
func (p *Platform) ListServices(ctx context.Context) ([]types.PlatformService, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listErr != nil {
		return nil, platform.Wrap("list services", p.listErr)
	}
	result := make([]types.PlatformService, 0, len(p.order))
	for _, name := range p.order {
		result = append(result, *p.services[name])
	}
	return result, nil
}

// UpdateService implements platform.ServiceAPI. The update starts applying
// on the next inspection.
func (p *Platform) UpdateService(ctx context.Context, name, image string, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.updates = append(p.updates, Update{Service: name, Image: image, Force: force})
	if err := p.updateErrs[key(name, image)]; err != nil {
		return platform.Wrap("update service", err)
	}
	svc, ok := p.services[name]
	if !ok {
		return fmt.Errorf("%w: %s", platform.ErrServiceNotFound, name)
	}
	svc.Image = image
	p.pending[name] = &pending{image: image, polls: p.polls}
	return nil
}

// InspectService implements platform.ServiceAPI
func (p *Platform) InspectService(ctx context.Context, name string) (types.PlatformService, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.inspectErrs[name]; err != nil {
		return types.PlatformService{}, platform.Wrap("inspect service", err)
	}
	svc, ok := p.services[name]
	if !ok {
		return types.PlatformService{}, fmt.Errorf("%w: %s", platform.ErrServiceNotFound, name)
	}

	if pend, ok := p.pending[name]; ok {
		if !pend.started {
			pend.started = true
			svc.UpdatedAt = time.Now()
			svc.UpdateState = types.UpdateStateUpdating
			svc.UpdateMessage = ""
		}
		k := key(name, pend.image)
		switch {
		case p.stuck[k]:
		case pend.polls > 0:
			pend.polls--
		default:
			state, ok := p.terminal[k]
			if !ok {
				state = types.UpdateStateCompleted
			}
			svc.UpdateState = state
			svc.UpdateMessage = "update " + string(state)
			delete(p.pending, name)
		}
	}
	return *svc, nil
}

// GetImage implements platform.ImageStore
func (p *Platform) GetImage(ctx context.Context, ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lookups = append(p.lookups, ref)
	id, ok := p.local[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", platform.ErrImageNotFound, ref)
	}
	return id, nil
}

// TagImage implements platform.ImageStore
func (p *Platform) TagImage(ctx context.Context, source, target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.local[source]
	if !ok {
		return fmt.Errorf("%w: %s", platform.ErrImageNotFound, source)
	}
	p.local[target] = id
	p.tags = append(p.tags, target)
	return nil
}

// PullImage implements platform.ImageStore
func (p *Platform) PullImage(ctx context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pulls = append(p.pulls, ref)
	if err := p.pullErrs[ref]; err != nil {
		return platform.Wrap("pull image", err)
	}
	if !p.registry[ref] {
		return fmt.Errorf("%w: %s", platform.ErrImageNotFound, ref)
	}
	if _, ok := p.local[ref]; !ok {
		p.nextImageID++
		p.local[ref] = fmt.Sprintf("sha256:%064d", p.nextImageID)
	}
	return nil
}

// Updates returns every UpdateService call in order
func (p *Platform) Updates() []Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Update(nil), p.updates...)
}

// Pulls returns every PullImage reference in order
func (p *Platform) Pulls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pulls...)
}

// Tags returns every tag target written in order
func (p *Platform) Tags() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tags...)
}

// Lookups returns every GetImage reference in order
func (p *Platform) Lookups() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lookups...)
}

// ImageID returns the ID a local reference resolves to
func (p *Platform) ImageID(ref string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.local[ref]
	return id, ok
}

var _ platform.Platform = (*Platform)(nil)
