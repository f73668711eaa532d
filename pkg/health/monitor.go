package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/rs/zerolog"
)

// ReportFunc receives the health of a dependency after every check
type ReportFunc func(name string, healthy bool, message string)

// Monitor runs a set of checkers on demand and in the background
type Monitor struct {
	checkers []Checker
	config   Config
	report   ReportFunc
	logger   zerolog.Logger

	mu       sync.Mutex
	statuses map[string]*Status

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewMonitor creates a monitor. report may be nil.
func NewMonitor(config Config, report ReportFunc, checkers ...Checker) *Monitor {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Retries <= 0 {
		config.Retries = defaults.Retries
	}
	if report == nil {
		report = func(string, bool, string) {}
	}

	statuses := make(map[string]*Status, len(checkers))
	for _, c := range checkers {
		statuses[c.Name()] = NewStatus()
	}

	return &Monitor{
		checkers: checkers,
		config:   config,
		report:   report,
		logger:   log.WithComponent("health"),
		statuses: statuses,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// CheckAll runs every checker once, each bounded by the configured timeout,
// and reports the updated status
func (m *Monitor) CheckAll(ctx context.Context) map[string]Status {
	out := make(map[string]Status, len(m.checkers))
	for _, c := range m.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
		result := c.Check(checkCtx)
		cancel()

		m.mu.Lock()
		status := m.statuses[c.Name()]
		wasHealthy := status.Healthy
		status.Update(result, m.config)
		out[c.Name()] = *status
		m.mu.Unlock()

		if wasHealthy && !status.Healthy {
			m.logger.Warn().Str("dependency", c.Name()).Str("message", result.Message).Msg("Dependency became unhealthy")
		} else if !wasHealthy && status.Healthy {
			m.logger.Info().Str("dependency", c.Name()).Msg("Dependency recovered")
		}

		message := ""
		if !status.Healthy {
			message = result.Message
		}
		m.report(c.Name(), status.Healthy, message)
	}
	return out
}

// Status returns the last known status of the named dependency
func (m *Monitor) Status(name string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[name]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// Start runs CheckAll every interval until Stop
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Stop stops background checks. It is safe to call more than once and
// without a prior Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	started := true
	m.startOnce.Do(func() { started = false })
	if started {
		<-m.doneCh
	}
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.CheckAll(context.Background())
		}
	}
}
