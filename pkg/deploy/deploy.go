package deploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/swarmroll/pkg/events"
	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/storage"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/cuemby/swarmroll/pkg/updater"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRolloutInProgress is returned when a rollout is requested while another
// one is still running on the same deployer
var ErrRolloutInProgress = errors.New("a rollout is already in progress")

const drainPollInterval = 50 * time.Millisecond

// Deployer sequences rollouts of the registered stack. At most one rollout
// runs at a time per Deployer.
type Deployer struct {
	store     storage.Store
	updater   *updater.Updater
	publisher events.Publisher

	mu sync.Mutex
}

// NewDeployer creates a deployer reading the registry from store. A nil
// updater uses the default bounded wait; a nil publisher discards events.
func NewDeployer(store storage.Store, u *updater.Updater, publisher events.Publisher) *Deployer {
	if u == nil {
		u = updater.NewUpdater(nil)
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &Deployer{
		store:     store,
		updater:   u,
		publisher: publisher,
	}
}

// Rollout updates every requested service (all registered services when
// requested is empty) that is active on p, one at a time in platform listing
// order. On the first failure it reverts every service already attempted,
// the failed one included, when a backup was taken.
//
// Rollout failures are reported through the Result. An error is returned
// only when the rollout could not start: another rollout holds the lock, or
// the platform or registry could not be listed.
func (d *Deployer) Rollout(ctx context.Context, p platform.Platform, requested []string) (*Result, error) {
	if !d.mu.TryLock() {
		return nil, ErrRolloutInProgress
	}
	defer d.mu.Unlock()

	rolloutID := uuid.NewString()
	logger := log.WithRollout(rolloutID)
	timer := metrics.NewTimer()

	active, err := p.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active services: %w", err)
	}
	registered, err := d.store.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered services: %w", err)
	}

	resolution := Resolve(active, registered, requested)
	logger.Info().
		Int("active", len(active)).
		Int("mapped", len(resolution.Mapping)).
		Strs("requested", requested).
		Msg("Rollout started")
	d.publish(rolloutID, events.EventRolloutStarted, "", "Rollout started", map[string]string{
		"mapped": fmt.Sprint(len(resolution.Mapping)),
	})

	for _, s := range resolution.Skipped {
		logger.Warn().Str("service", s.Service).Str("reason", s.Reason).Msg("Requested service skipped")
		d.publish(rolloutID, events.EventServiceSkipped, s.Service, "Service skipped: "+s.Reason, nil)
	}

	rollbackAvailable := true
	if f := backup(ctx, logger, p, active, resolution.Mapping); f != nil {
		rollbackAvailable = false
		d.publish(rolloutID, events.EventBackupFailed, f.Service, f.Err.Error(), map[string]string{"image": f.Image})
	}

	if f := pull(ctx, logger, p, active, resolution.Mapping); f != nil {
		d.publish(rolloutID, events.EventPullFailed, f.Service, f.Err.Error(), map[string]string{"image": f.Image})
	}

	result := d.update(ctx, logger, p, rolloutID, active, resolution, rollbackAvailable)
	result.RolloutID = rolloutID
	result.Skipped = resolution.Skipped

	metrics.RolloutsTotal.WithLabelValues(string(result.Kind)).Inc()
	timer.ObserveDuration(metrics.RolloutDuration)
	d.finish(logger, result)
	return result, nil
}

// Wait blocks until no rollout is running on the deployer or ctx is done.
// It does not prevent a new rollout from starting once it returns.
func (d *Deployer) Wait(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		if d.mu.TryLock() {
			d.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Deployer) update(ctx context.Context, logger zerolog.Logger, p platform.Platform, rolloutID string, active []types.PlatformService, resolution Resolution, rollbackAvailable bool) *Result {
	var attempted []string

	for _, svc := range active {
		target, ok := resolution.Mapping[svc.Name]
		if !ok {
			continue
		}

		attempted = append(attempted, svc.Name)
		outcome := d.updater.Update(ctx, p, svc.Name, target.Ref(), updater.PhaseRollout)
		if outcome.Completed() {
			d.publish(rolloutID, events.EventServiceUpdated, svc.Name, "Service updated", map[string]string{
				"image":    outcome.Image,
				"duration": outcome.Duration().String(),
			})
			continue
		}

		d.publish(rolloutID, events.EventServiceUpdateFailed, svc.Name, outcome.Err.Error(), map[string]string{
			"image": outcome.Image,
		})

		if !rollbackAvailable {
			logger.Error().Str("service", svc.Name).Msg("Update failed and no backup images were created, not reverting")
			return &Result{
				Kind:          ResultRollbackImpossible,
				FailedService: svc.Name,
				Err:           outcome.Err,
				Attempted:     attempted,
			}
		}

		logger.Warn().Str("service", svc.Name).Strs("attempted", attempted).Msg("Update failed, reverting attempted services")
		return d.rollback(ctx, logger, p, rolloutID, attempted, resolution.Mapping, svc.Name, outcome.Err)
	}

	return &Result{Kind: ResultSucceeded, Attempted: attempted}
}

func (d *Deployer) finish(logger zerolog.Logger, result *Result) {
	var eventType events.EventType
	switch result.Kind {
	case ResultSucceeded:
		eventType = events.EventRolloutSucceeded
		logger.Info().Strs("updated", result.Attempted).Msg("Rollout succeeded")
	case ResultRolledBack:
		eventType = events.EventRolloutRolledBack
		logger.Error().Err(result.Err).Str("failed_service", result.FailedService).Msg("Rollout failed, stack reverted")
	case ResultRollbackFailed:
		eventType = events.EventRolloutRollbackFailed
		logger.Error().Err(result.Err).
			Str("failed_service", result.FailedService).
			Str("revert_failed_service", result.RevertFailedService).
			Msg("Rollout failed and revert failed")
	default:
		eventType = events.EventRolloutRollbackImpossible
		logger.Error().Err(result.Err).Str("failed_service", result.FailedService).Msg("Rollout failed, stack not reverted")
	}
	d.publish(result.RolloutID, eventType, result.FailedService, result.String(), nil)
}

func (d *Deployer) publish(rolloutID string, eventType events.EventType, service, message string, metadata map[string]string) {
	d.publisher.Publish(&events.Event{
		Type:      eventType,
		RolloutID: rolloutID,
		Service:   service,
		Message:   message,
		Metadata:  metadata,
	})
}
