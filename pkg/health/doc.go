/*
Package health checks the dependencies swarmroll needs to serve rollouts.

A Checker probes one dependency and returns a Result. PingChecker adapts any
Ping(ctx) error method, which is how the registry store and the orchestration
platform are checked. A Monitor keeps a Status per checker and marks a
dependency unhealthy once Config.Retries consecutive checks failed; one
success marks it healthy again.

Every check is reported through a ReportFunc. The API server wires it to the
readiness components of pkg/metrics, runs the checks in the background and
again on every GET /ready.

	m := health.NewMonitor(health.DefaultConfig(), metrics.UpdateComponent,
		health.NewPingChecker(metrics.ComponentStore, store.Ping),
		health.NewPingChecker(metrics.ComponentPlatform, p.Ping),
	)
	m.Start()
	defer m.Stop()
*/
package health
