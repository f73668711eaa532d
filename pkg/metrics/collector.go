package metrics

import (
	"context"
	"time"

	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultCollectInterval is how often the collector refreshes its gauges
const DefaultCollectInterval = 15 * time.Second

// StatusFunc lists every registered service with its platform activity
type StatusFunc func(ctx context.Context) ([]types.ServiceStatus, error)

// Collector periodically gauges the registry against the platform
type Collector struct {
	status   StatusFunc
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(status StatusFunc, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{
		status:   status,
		interval: interval,
		logger:   log.WithComponent("metrics"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer close(c.doneCh)

		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector and waits for the collecting goroutine to exit
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	statuses, err := c.status(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to collect service status")
		return
	}

	active := 0
	for _, s := range statuses {
		if s.Active {
			active++
		}
	}

	RegisteredServices.Set(float64(len(statuses)))
	ActiveServices.Set(float64(active))
}
