package health

import (
	"context"
	"fmt"
	"time"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Name identifies the checked dependency
	Name() string

	// Check performs the health check and returns the result
	Check(ctx context.Context) Result
}

// Config contains common configuration for all health checks
type Config struct {
	// Interval is the time between background checks
	Interval time.Duration

	// Timeout is the maximum time to wait for a health check to complete
	Timeout time.Duration

	// Retries is the number of consecutive failures before marking as unhealthy
	Retries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 15 * time.Second,
		Timeout:  3 * time.Second,
		Retries:  1,
	}
}

// Status tracks the current health of one dependency
type Status struct {
	// ConsecutiveFailures tracks the number of consecutive failed checks
	ConsecutiveFailures int

	// ConsecutiveSuccesses tracks the number of consecutive successful checks
	ConsecutiveSuccesses int

	// LastCheck is the timestamp of the last health check
	LastCheck time.Time

	// LastResult is the result of the last health check
	LastResult Result

	// Healthy indicates if the dependency is currently considered healthy
	Healthy bool
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		Healthy: true, // Assume healthy until proven otherwise
	}
}

// Update updates the status based on a new health check result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// PingFunc checks connectivity to a dependency
type PingFunc func(ctx context.Context) error

// PingChecker reports a dependency healthy when its ping succeeds
type PingChecker struct {
	name string
	ping PingFunc
}

// NewPingChecker creates a checker named name around ping
func NewPingChecker(name string, ping PingFunc) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// Name implements Checker
func (c *PingChecker) Name() string {
	return c.name
}

// Check implements Checker
func (c *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.ping(ctx)
	result := Result{
		Healthy:   err == nil,
		Message:   "ok",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Message = fmt.Sprintf("ping failed: %v", err)
	}
	return result
}
