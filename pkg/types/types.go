package types

import (
	"time"
)

// ServiceRef is a registry entry describing which image a service should run
type ServiceRef struct {
	Name       string    `json:"name" yaml:"name"`
	Repository string    `json:"repository" yaml:"repository"`
	Tag        string    `json:"tag" yaml:"tag"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"-"`
}

// Image returns the target image reference for the service
func (s *ServiceRef) Image() string {
	return s.Repository + ":" + s.Tag
}

// ImageTarget is the repository and tag a service is updated to
type ImageTarget struct {
	Repository string
	Tag        string
}

// Ref returns "<repository>:<tag>"
func (t ImageTarget) Ref() string {
	return t.Repository + ":" + t.Tag
}

// ImageMapping maps service name to the image it should be updated to.
// It is derived per rollout and never persisted.
type ImageMapping map[string]ImageTarget

// Has reports whether the service is part of the mapping
func (m ImageMapping) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// PlatformService is a snapshot of a service as reported by the orchestration platform
type PlatformService struct {
	ID            string
	Name          string
	Image         string      // Image reference currently in the service spec
	UpdatedAt     time.Time   // Last time the platform started applying an update
	UpdateState   UpdateState // Empty if the service was never updated
	UpdateMessage string
}

// UpdateState is the update phase reported by the platform
type UpdateState string

const (
	UpdateStateNone              UpdateState = ""
	UpdateStateUpdating          UpdateState = "updating"
	UpdateStatePaused            UpdateState = "paused"
	UpdateStateCompleted         UpdateState = "completed"
	UpdateStateRollbackStarted   UpdateState = "rollback_started"
	UpdateStateRollbackPaused    UpdateState = "rollback_paused"
	UpdateStateRollbackCompleted UpdateState = "rollback_completed"
)

// InProgress reports whether the platform is still applying an update
func (s UpdateState) InProgress() bool {
	return s == UpdateStateUpdating || s == UpdateStateRollbackStarted
}

// UpdaterState is the state of a single service update
type UpdaterState string

const (
	UpdaterIdle      UpdaterState = "idle"
	UpdaterUpdating  UpdaterState = "updating"
	UpdaterCompleted UpdaterState = "completed"
	UpdaterFailed    UpdaterState = "failed"
)

// UpdateOutcome is the result of updating one service
type UpdateOutcome struct {
	Service    string
	Image      string
	State      UpdaterState
	Err        error // Set when State is UpdaterFailed
	StartedAt  time.Time
	FinishedAt time.Time
}

// Completed reports whether the update converged successfully
func (o UpdateOutcome) Completed() bool {
	return o.State == UpdaterCompleted
}

// Duration returns how long the update took
func (o UpdateOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// ServiceStatus is a registry entry annotated with whether it runs on the platform
type ServiceStatus struct {
	ServiceRef
	Active bool `json:"active"`
}
