package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/cuemby/swarmroll/pkg/wait"
	"github.com/rs/zerolog"
)

// ServiceUpdateError is returned when the platform reports a terminal
// update state other than completed
type ServiceUpdateError struct {
	Service string
	State   types.UpdateState
	Message string
}

func (e *ServiceUpdateError) Error() string {
	msg := fmt.Sprintf("failed to update service %s: update state %q", e.Service, e.State)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Phase labels the metrics and logs of an update
type Phase string

const (
	PhaseRollout  Phase = "rollout"
	PhaseRollback Phase = "rollback"
)

// Updater applies an image to one service and waits for the platform to converge
type Updater struct {
	waiter *wait.Waiter
}

// NewUpdater creates an updater polling with waiter
func NewUpdater(waiter *wait.Waiter) *Updater {
	if waiter == nil {
		waiter = wait.DefaultWaiter()
	}
	return &Updater{waiter: waiter}
}

// Update drives a service through idle → updating → completed|failed.
// Failures are reported through the returned outcome, never as a panic or
// a separate error: Err carries a *ServiceUpdateError, a *platform.APIError,
// wait.ErrTimeout or the context error.
func (u *Updater) Update(ctx context.Context, p platform.ServiceAPI, service, image string, phase Phase) types.UpdateOutcome {
	outcome := types.UpdateOutcome{
		Service: service,
		Image:   image,
		State:   types.UpdaterIdle,
	}
	logger := log.WithService(service).With().
		Str("component", "updater").
		Str("image", image).
		Str("phase", string(phase)).
		Logger()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.ServiceUpdateDuration, string(phase))
		metrics.ServiceUpdatesTotal.WithLabelValues(string(phase), string(outcome.State)).Inc()
	}()

	outcome.StartedAt = time.Now()
	if err := p.UpdateService(ctx, service, image, true); err != nil {
		return u.fail(logger, outcome, err)
	}
	outcome.State = types.UpdaterUpdating
	logger.Info().Msg("Service update issued")

	var last types.PlatformService
	err := u.waiter.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		svc, err := p.InspectService(ctx, service)
		if err != nil {
			return false, err
		}
		last = svc
		logger.Debug().
			Str("state", string(svc.UpdateState)).
			Time("updated_at", svc.UpdatedAt).
			Msg("Polled service")
		return Converged(svc, outcome.StartedAt), nil
	}, fmt.Sprintf("service %s to converge on %s", service, image))
	if err != nil {
		return u.fail(logger, outcome, err)
	}

	if last.UpdateState != types.UpdateStateCompleted {
		return u.fail(logger, outcome, &ServiceUpdateError{
			Service: service,
			State:   last.UpdateState,
			Message: last.UpdateMessage,
		})
	}

	outcome.State = types.UpdaterCompleted
	outcome.FinishedAt = time.Now()
	logger.Info().Dur("elapsed", outcome.Duration()).Msg("Service converged")
	return outcome
}

// Converged reports whether the platform finished applying an update issued at issuedAt
func Converged(svc types.PlatformService, issuedAt time.Time) bool {
	return svc.UpdatedAt.After(issuedAt) && !svc.UpdateState.InProgress()
}

func (u *Updater) fail(logger zerolog.Logger, outcome types.UpdateOutcome, err error) types.UpdateOutcome {
	outcome.State = types.UpdaterFailed
	outcome.Err = err
	outcome.FinishedAt = time.Now()

	event := logger.Error().Err(err).Dur("elapsed", outcome.Duration())
	if errors.Is(err, wait.ErrTimeout) {
		event.Msg("Service did not converge in time")
	} else {
		event.Msg("Service update failed")
	}
	return outcome
}
