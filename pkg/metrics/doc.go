/*
Package metrics provides Prometheus metrics and health reporting for swarmroll.

All metrics are registered on the default Prometheus registry at package init
and exposed through Handler on /metrics.

# Metric Families

Registry:
  - swarmroll_registered_services: services in the registry
  - swarmroll_active_services: registered services present on the platform

Rollouts:
  - swarmroll_rollouts_total{result}: succeeded, rolled_back, rollback_failed
  - swarmroll_rollout_duration_seconds: end to end, rollback included
  - swarmroll_rollbacks_total
  - swarmroll_image_pulls_total{outcome}

Service updates:
  - swarmroll_service_updates_total{phase,state}: phase is rollout or rollback
  - swarmroll_service_update_duration_seconds{phase}

API:
  - swarmroll_api_requests_total{method,status}
  - swarmroll_api_request_duration_seconds{method}
  - swarmroll_webhook_rejections_total{reason}

Events:
  - swarmroll_events_published_total{type}
  - swarmroll_events_dropped_total

# Collector

Registry gauges are refreshed by a Collector polling a StatusFunc every
15 seconds by default:

	collector := metrics.NewCollector(func(ctx context.Context) ([]types.ServiceStatus, error) {
		return deploy.Statuses(ctx, store, platform)
	}, 0)
	collector.Start()
	defer collector.Stop()

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ServiceUpdateDuration, "rollout")

# Health

The package keeps a process-wide component registry. /health reports
unhealthy when any registered component is unhealthy; /ready additionally
requires every critical component (see SetCriticalComponents) to be
registered and healthy.

	metrics.RegisterComponent(metrics.ComponentStore, true, "bolt")
	metrics.UpdateComponent(metrics.ComponentPlatform, false, err.Error())
*/
package metrics
