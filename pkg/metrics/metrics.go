package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	RegisteredServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmroll_registered_services",
			Help: "Number of services in the registry",
		},
	)

	ActiveServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmroll_active_services",
			Help: "Number of registered services currently running on the platform",
		},
	)

	// Rollout metrics
	RolloutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmroll_rollouts_total",
			Help: "Total number of rollouts by result",
		},
		[]string{"result"},
	)

	RolloutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarmroll_rollout_duration_seconds",
			Help:    "Duration of a full rollout, including rollback, in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	RollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmroll_rollbacks_total",
			Help: "Total number of rollbacks started",
		},
	)

	ImagePullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmroll_image_pulls_total",
			Help: "Total number of image pulls by outcome",
		},
		[]string{"outcome"},
	)

	// Service update metrics
	ServiceUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmroll_service_updates_total",
			Help: "Total number of service updates by phase and final state",
		},
		[]string{"phase", "state"},
	)

	ServiceUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swarmroll_service_update_duration_seconds",
			Help:    "Time from issuing a service update until convergence or failure",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"phase"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmroll_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swarmroll_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	WebhookRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmroll_webhook_rejections_total",
			Help: "Total number of rejected deploy webhooks by reason",
		},
		[]string{"reason"},
	)

	// Event metrics
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmroll_events_published_total",
			Help: "Total number of rollout events published by type",
		},
		[]string{"type"},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmroll_events_dropped_total",
			Help: "Total number of events dropped because a subscriber was full",
		},
	)
)

func init() {
	prometheus.MustRegister(RegisteredServices)
	prometheus.MustRegister(ActiveServices)
	prometheus.MustRegister(RolloutsTotal)
	prometheus.MustRegister(RolloutDuration)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(ImagePullsTotal)
	prometheus.MustRegister(ServiceUpdatesTotal)
	prometheus.MustRegister(ServiceUpdateDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(WebhookRejectionsTotal)
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(EventsDroppedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
