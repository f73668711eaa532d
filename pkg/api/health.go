package api

import (
	"net/http"

	"github.com/cuemby/swarmroll/pkg/health"
	"github.com/cuemby/swarmroll/pkg/metrics"
)

func (s *Server) newHealthMonitor() *health.Monitor {
	return health.NewMonitor(health.DefaultConfig(), metrics.UpdateComponent,
		health.NewPingChecker(metrics.ComponentStore, s.store.Ping),
		health.NewPingChecker(metrics.ComponentPlatform, s.platform.Ping),
	)
}

// handleReady checks the store and the platform before reporting readiness
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.health.CheckAll(r.Context())
	metrics.ReadyHandler()(w, r)
}
