package deploy

import (
	"context"

	"github.com/cuemby/swarmroll/pkg/events"
	"github.com/cuemby/swarmroll/pkg/image"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/cuemby/swarmroll/pkg/updater"
	"github.com/rs/zerolog"
)

// rollback points every attempted service back at <repository>:previous in
// attempt order. The first failed revert stops the rollback.
func (d *Deployer) rollback(ctx context.Context, logger zerolog.Logger, p platform.ServiceAPI, rolloutID string, attempted []string, mapping types.ImageMapping, failed string, cause error) *Result {
	metrics.RollbacksTotal.Inc()

	result := &Result{
		Kind:          ResultRolledBack,
		FailedService: failed,
		Err:           cause,
		Attempted:     attempted,
	}

	for _, name := range attempted {
		previous := image.Previous(mapping[name].Repository)

		outcome := d.updater.Update(ctx, p, name, previous, updater.PhaseRollback)
		if !outcome.Completed() {
			logger.Error().Err(outcome.Err).Str("service", name).Msg("Revert failed, rollback stopped")
			d.publish(rolloutID, events.EventServiceRevertFailed, name, outcome.Err.Error(), map[string]string{"image": previous})

			result.Kind = ResultRollbackFailed
			result.RevertFailedService = name
			result.Err = outcome.Err
			return result
		}

		result.Reverted = append(result.Reverted, name)
		d.publish(rolloutID, events.EventServiceReverted, name, "Service reverted", map[string]string{"image": previous})
	}
	return result
}
