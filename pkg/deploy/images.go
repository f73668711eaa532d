package deploy

import (
	"context"

	"github.com/cuemby/swarmroll/pkg/image"
	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/rs/zerolog"
)

// backupFailure describes why Backup gave up
type backupFailure struct {
	Service string
	Image   string
	Err     error
}

// Backup tags the image each mapped service runs as <repository>:previous,
// walking services in platform listing order. It returns true only when every
// service was backed up; the first failure stops the step. Errors are never
// returned: a failed backup disables rollback but does not block the rollout.
func Backup(ctx context.Context, p platform.ImageStore, active []types.PlatformService, mapping types.ImageMapping) bool {
	return backup(ctx, log.WithComponent("backup"), p, active, mapping) == nil
}

func backup(ctx context.Context, logger zerolog.Logger, p platform.ImageStore, active []types.PlatformService, mapping types.ImageMapping) *backupFailure {
	for _, svc := range active {
		target, ok := mapping[svc.Name]
		if !ok {
			continue
		}

		source := backupSource(svc, target)
		if _, err := p.GetImage(ctx, source); err != nil {
			logger.Warn().Err(err).Str("service", svc.Name).Str("image", source).Msg("Running image not found, backup aborted")
			return &backupFailure{Service: svc.Name, Image: source, Err: err}
		}

		previous := image.Previous(target.Repository)
		if err := p.TagImage(ctx, source, previous); err != nil {
			logger.Warn().Err(err).Str("service", svc.Name).Str("image", source).Msg("Failed to tag backup image, backup aborted")
			return &backupFailure{Service: svc.Name, Image: source, Err: err}
		}
		logger.Debug().Str("service", svc.Name).Str("source", source).Str("backup", previous).Msg("Backed up image")
	}
	return nil
}

// backupSource picks the local reference of the image a service runs. When
// the running image belongs to another repository or carries no tag the
// registered <repository>:<tag> is used.
func backupSource(svc types.PlatformService, target types.ImageTarget) string {
	if svc.Image != "" && image.SameRepository(svc.Image, target.Repository) {
		if ref, ok := image.TaggedRef(svc.Image); ok {
			return ref
		}
	}
	return target.Ref()
}

// Pull fetches <repository>:<tag> for every mapped service. It returns true
// when every pull succeeded; the first failure aborts the remaining pulls.
// The rollout continues either way.
func Pull(ctx context.Context, p platform.ImageStore, active []types.PlatformService, mapping types.ImageMapping) bool {
	return pull(ctx, log.WithComponent("pull"), p, active, mapping) == nil
}

type pullFailure struct {
	Service string
	Image   string
	Err     error
}

func pull(ctx context.Context, logger zerolog.Logger, p platform.ImageStore, active []types.PlatformService, mapping types.ImageMapping) *pullFailure {
	for _, svc := range active {
		target, ok := mapping[svc.Name]
		if !ok {
			continue
		}

		ref := target.Ref()
		if err := p.PullImage(ctx, ref); err != nil {
			metrics.ImagePullsTotal.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Str("service", svc.Name).Str("image", ref).Msg("Failed to pull image, remaining pulls skipped")
			return &pullFailure{Service: svc.Name, Image: ref, Err: err}
		}
		metrics.ImagePullsTotal.WithLabelValues("succeeded").Inc()
		logger.Debug().Str("service", svc.Name).Str("image", ref).Msg("Pulled image")
	}
	return nil
}
